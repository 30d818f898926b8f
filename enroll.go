package facewatch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abihf/facewatch/capture"
	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/detect"
	"github.com/abihf/facewatch/display"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/labels"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FaceCallback receives the normalized crop of the only face in a frame.
// Returning true stops the search.
type FaceCallback func(face gocv.Mat) (bool, error)

type EnrollOptions struct {
	Name     string
	Samples  int
	Interval time.Duration
	Display  display.Display
}

// Enroll captures face crops from the configured device and stores them
// as new training samples under conf.TrainDir()/<name>. Only frames with
// exactly one face are used. The model is not touched, run Train after.
func Enroll(ctx context.Context, conf *config.Config, opts EnrollOptions) ([]string, error) {
	name, err := sampleDirName(opts.Name)
	if err != nil {
		return nil, err
	}
	if opts.Samples <= 0 {
		opts.Samples = conf.Enroll.Samples
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(conf.Enroll.Interval) * time.Millisecond
	}
	dir := filepath.Join(conf.TrainDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "can not create %s", dir)
	}

	source, err := capture.Open(conf.Capture)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	localizer, err := detect.Open(conf)
	if err != nil {
		return nil, err
	}
	defer localizer.Close()

	disp := opts.Display
	if disp == nil {
		if conf.Display.Headless {
			disp = display.Headless{}
		} else {
			disp = display.NewWindow("Enroll "+name, conf.Display.KeyDelay)
		}
	}
	defer disp.Close()

	var saved []string
	next := time.Now()
	stamp := time.Now().Format("20060102-150405")
	err = FindFace(ctx, source, localizer, disp, func(face gocv.Mat) (bool, error) {
		if time.Now().Before(next) {
			return false, nil
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%03d.png", stamp, len(saved)))
		if !gocv.IMWrite(path, face) {
			return false, errors.Errorf("can not write sample %s", path)
		}
		saved = append(saved, path)
		next = time.Now().Add(opts.Interval)
		slog.Info("Sample saved", "path", path, "count", len(saved), "of", opts.Samples)
		return len(saved) >= opts.Samples, nil
	})
	return saved, err
}

// sampleDirName checks that name is usable both as a directory and as a
// registry entry.
func sampleDirName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid identity name %q", name)
	}
	reg, err := labels.Build([]string{name})
	if err != nil {
		return "", err
	}
	return reg.Name(0), nil
}

// FindFace reads frames until cb asks to stop, the escape key is pressed,
// ctx is cancelled or the stream ends. Frames with exactly one face are
// handed to cb; every detected box is drawn on the display.
func FindFace(ctx context.Context, source capture.Source, localizer detect.Localizer,
	disp display.Display, cb FaceCallback) error {
	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	face := gocv.NewMat()
	defer face.Close()

	for ctx.Err() == nil {
		if !source.Read(&frame) || frame.Empty() {
			return errors.New("capture ended before enough samples were taken")
		}
		if err := detect.Preprocess(frame, &gray); err != nil {
			continue
		}

		bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
		boxes := localizer.Detect(gray)
		for i, raw := range boxes {
			boxes[i] = facematch.ExpandBox(raw, bounds)
			display.Annotate(&frame, boxes[i], "")
		}
		disp.Show(frame)
		if disp.PollKey() == display.KeyEscape {
			return errors.New("enrollment cancelled")
		}

		if len(boxes) != 1 || boxes[0].Empty() {
			continue
		}
		if err := cropFace(gray, boxes[0], &face); err != nil {
			continue
		}
		done, err := cb(face)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ctx.Err()
}
