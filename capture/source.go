// Package capture provides the frames the recognition loop works on.
package capture

import (
	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/errdefs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Source yields BGR frames. Read returns false at end of stream.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Open opens the device named in conf with the configured backend.
func Open(conf config.Capture) (Source, error) {
	switch conf.Backend {
	case config.BackendV4L2:
		return OpenV4L2(conf.Device, conf.Width, conf.Height, conf.SkipDark)
	case config.BackendGocv, "":
		return OpenVideo(conf.Device, conf.Width, conf.Height)
	default:
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "unknown backend %q", conf.Backend)
	}
}
