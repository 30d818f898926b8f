package detect

import (
	"image"
	"log/slog"

	"github.com/abihf/facewatch/errdefs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Net is an SSD face detector loaded from a Caffe model, such as
// res10_300x300_ssd.
type Net struct {
	net        gocv.Net
	confidence float32
}

// NewNet loads the network definition and weights.
func NewNet(prototxt, weights string, confidence float64) (*Net, error) {
	if err := checkReadable("prototxt", prototxt); err != nil {
		return nil, err
	}
	if err := checkReadable("weights", weights); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromCaffe(prototxt, weights)
	if net.Empty() {
		net.Close()
		return nil, errors.Wrapf(errdefs.ErrResourceLoadFailed, "can not read network %s", prototxt)
	}
	return &Net{net: net, confidence: float32(confidence)}, nil
}

func (n *Net) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() {
		return nil
	}

	// the network was trained on BGR input
	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR); err != nil {
		slog.Debug("Can not convert frame for the network", "error", err)
		return nil
	}

	blob := gocv.BlobFromImage(bgr, 1, image.Pt(300, 300),
		gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	n.net.SetInput(blob, "")

	out := n.net.Forward("")
	defer out.Close()

	// rows of [image, class, confidence, left, top, right, bottom]
	res := out.Reshape(1, 1)
	defer res.Close()

	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	w, h := float32(gray.Cols()), float32(gray.Rows())

	var faces []image.Rectangle
	for i := 0; i+6 < res.Total(); i += 7 {
		if res.GetFloatAt(0, i+2) < n.confidence {
			continue
		}
		r := image.Rect(
			int(res.GetFloatAt(0, i+3)*w),
			int(res.GetFloatAt(0, i+4)*h),
			int(res.GetFloatAt(0, i+5)*w),
			int(res.GetFloatAt(0, i+6)*h),
		).Intersect(bounds)
		if !r.Empty() {
			faces = append(faces, r)
		}
	}
	return faces
}

func (n *Net) Close() error {
	return n.net.Close()
}
