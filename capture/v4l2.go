package capture

import (
	"log/slog"

	"github.com/abihf/facewatch/errdefs"
	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/sys/unix"
)

const (
	pixFmtYUYV = webcam.PixelFormat(0x56595559) // 'YUYV'
	pixFmtGrey = webcam.PixelFormat(0x59455247) // 'GREY'

	frameTimeout = 1 // seconds
	maxTimeouts  = 10
)

// V4L2 reads raw frames from a video4linux device, for cameras OpenCV
// can not drive, such as IR sensors that only expose GREY or YUYV.
type V4L2 struct {
	cam      *webcam.Webcam
	format   webcam.PixelFormat
	width    int
	height   int
	skipDark bool
}

// OpenV4L2 opens path and starts streaming at the size closest to
// width x height.
func OpenV4L2(path string, width, height int, skipDark bool) (*V4L2, error) {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "%s: %v", path, err)
	}

	cam, err := webcam.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "can not open device %s: %v", path, err)
	}

	format, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		cam.Close()
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "%s: %v", path, err)
	}

	format, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "can not set format on %s: %v", path, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrapf(errdefs.ErrDeviceUnavailable, "can not start streaming %s: %v", path, err)
	}

	slog.Info("Opened V4L2 device", "device", path, "width", w, "height", h)
	return &V4L2{cam: cam, format: format, width: int(w), height: int(h), skipDark: skipDark}, nil
}

func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	for _, f := range []webcam.PixelFormat{pixFmtGrey, pixFmtYUYV} {
		if _, ok := supported[f]; ok {
			return f, nil
		}
	}
	return 0, errors.Errorf("no GREY or YUYV format among %v", supported)
}

// Read blocks until a usable frame arrives. Frames that are truncated or,
// with skipDark, badly exposed are dropped. It gives up after maxTimeouts
// consecutive timeouts or on a device error.
func (v *V4L2) Read(dst *gocv.Mat) bool {
	timeouts := 0
	for {
		err := v.cam.WaitForFrame(frameTimeout)
		switch err.(type) {
		case nil:
			timeouts = 0
		case *webcam.Timeout:
			timeouts++
			if timeouts >= maxTimeouts {
				slog.Warn("Camera stopped delivering frames", "timeouts", timeouts)
				return false
			}
			continue
		default:
			slog.Warn("Frame wait failed", "error", err)
			return false
		}

		frame, err := v.cam.ReadFrame()
		if err != nil {
			slog.Warn("Read frame failed", "error", err)
			return false
		}

		luma, err := lumaPlane(frame, v.format, v.width, v.height)
		if err != nil {
			slog.Debug("Dropping frame", "error", err)
			continue
		}
		if v.skipDark && !usableExposure(luma) {
			continue
		}

		gray, err := gocv.NewMatFromBytes(v.height, v.width, gocv.MatTypeCV8UC1, luma)
		if err != nil {
			slog.Debug("Dropping frame", "error", err)
			continue
		}
		err = gocv.CvtColor(gray, dst, gocv.ColorGrayToBGR)
		gray.Close()
		if err != nil {
			slog.Debug("Dropping frame", "error", err)
			continue
		}
		return true
	}
}

func (v *V4L2) Close() error {
	if err := v.cam.StopStreaming(); err != nil {
		slog.Debug("Stop streaming failed", "error", err)
	}
	return v.cam.Close()
}

// lumaPlane returns a fresh copy of the Y plane of a GREY or YUYV frame.
func lumaPlane(frame []byte, format webcam.PixelFormat, width, height int) ([]byte, error) {
	n := width * height
	switch format {
	case pixFmtGrey:
		if len(frame) < n {
			return nil, errors.Errorf("short GREY frame: %d bytes, want %d", len(frame), n)
		}
		luma := make([]byte, n)
		copy(luma, frame)
		return luma, nil
	case pixFmtYUYV:
		if len(frame) < 2*n {
			return nil, errors.Errorf("short YUYV frame: %d bytes, want %d", len(frame), 2*n)
		}
		luma := make([]byte, n)
		for i := range luma {
			luma[i] = frame[2*i]
		}
		return luma, nil
	default:
		return nil, errors.Errorf("unsupported pixel format %#x", uint32(format))
	}
}
