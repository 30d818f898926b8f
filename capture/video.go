package capture

import (
	"strconv"

	"github.com/abihf/facewatch/errdefs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Video reads from anything OpenCV can open: a camera index, a device
// path, a video file or a stream URL.
type Video struct {
	vc *gocv.VideoCapture
}

// OpenVideo opens device. A numeric device is a camera index. width and
// height are a hint for cameras and ignored for files.
func OpenVideo(device string, width, height int) (*Video, error) {
	var target interface{} = device
	if idx, err := strconv.Atoi(device); err == nil {
		target = idx
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "can not open %s: %v", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "can not open %s", device)
	}

	if _, isCamera := target.(int); isCamera && width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Video{vc: vc}, nil
}

func (v *Video) Read(dst *gocv.Mat) bool {
	return v.vc.Read(dst) && !dst.Empty()
}

func (v *Video) Close() error {
	return v.vc.Close()
}
