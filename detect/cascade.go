package detect

import (
	"image"

	"github.com/abihf/facewatch/errdefs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type CascadeOptions struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// Cascade is a Haar cascade face detector.
type Cascade struct {
	classifier gocv.CascadeClassifier
	opt        CascadeOptions
}

// NewCascade loads the cascade definition at path.
func NewCascade(path string, opt CascadeOptions) (*Cascade, error) {
	if err := checkReadable("cascade", path); err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, errors.Wrapf(errdefs.ErrResourceLoadFailed, "error reading cascade file %s", path)
	}
	if opt.ScaleFactor <= 1 {
		opt.ScaleFactor = 1.1
	}
	return &Cascade{classifier: classifier, opt: opt}, nil
}

func (c *Cascade) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() {
		return nil
	}
	minSize := image.Pt(c.opt.MinSize, c.opt.MinSize)
	return c.classifier.DetectMultiScaleWithParams(gray, c.opt.ScaleFactor, c.opt.MinNeighbors, 0, minSize, image.Point{})
}

func (c *Cascade) Close() error {
	return c.classifier.Close()
}
