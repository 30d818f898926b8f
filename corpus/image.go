package corpus

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/abihf/facewatch/facematch"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeFile reads an image file and normalizes it with Normalize.
func DecodeFile(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if img.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}
	return Normalize(img), nil
}

// Normalize converts img to grayscale and stretches it to the canonical
// sample size. Aspect ratio is not preserved.
func Normalize(img image.Image) *image.Gray {
	gray := toGray(img)
	size := uint(facematch.SampleSize)
	return toGray(resize.Resize(size, size, gray, resize.Bilinear))
}

// toGray returns img as a grayscale image anchored at the origin.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
