// Package detect finds face bounding boxes in grayscale frames.
package detect

import (
	"image"
	"os"

	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/errdefs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Localizer returns the face boxes found in an equalized grayscale frame,
// in no particular order.
type Localizer interface {
	Detect(gray gocv.Mat) []image.Rectangle
	Close() error
}

// Open loads the detector selected by conf.
func Open(conf *config.Config) (Localizer, error) {
	d := conf.Detector
	switch d.Kind {
	case config.DetectorDNN:
		return NewNet(conf.Resolve(d.Prototxt), conf.Resolve(d.Weights), d.Confidence)
	case config.DetectorHaar, "":
		return NewCascade(conf.Resolve(d.Cascade), CascadeOptions{
			ScaleFactor:  d.ScaleFactor,
			MinNeighbors: d.MinNeighbors,
			MinSize:      d.MinSize,
		})
	default:
		return nil, errors.Wrapf(errdefs.ErrResourceLoadFailed, "unknown detector %q", d.Kind)
	}
}

// Preprocess converts frame to grayscale and equalizes its histogram into
// dst. Frames may be BGR, BGRA or already single channel.
func Preprocess(frame gocv.Mat, dst *gocv.Mat) error {
	if frame.Empty() {
		return errors.New("empty frame")
	}
	var err error
	switch frame.Channels() {
	case 1:
		err = frame.CopyTo(dst)
	case 3:
		err = gocv.CvtColor(frame, dst, gocv.ColorBGRToGray)
	case 4:
		err = gocv.CvtColor(frame, dst, gocv.ColorBGRAToGray)
	default:
		return errors.Errorf("unsupported frame with %d channels", frame.Channels())
	}
	if err != nil {
		return errors.Wrap(err, "can not convert frame to grayscale")
	}
	if err := gocv.EqualizeHist(*dst, dst); err != nil {
		return errors.Wrap(err, "can not equalize frame")
	}
	if dst.Rows() != frame.Rows() || dst.Cols() != frame.Cols() || dst.Channels() != 1 {
		return errors.Errorf("grayscale frame is %dx%dx%d, want %dx%dx1",
			dst.Cols(), dst.Rows(), dst.Channels(), frame.Cols(), frame.Rows())
	}
	return nil
}

func checkReadable(kind, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(errdefs.ErrResourceLoadFailed, "%s %s: %v", kind, path, err)
	}
	return f.Close()
}
