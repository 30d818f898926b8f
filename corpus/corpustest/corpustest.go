// Package corpustest writes synthetic training trees for tests.
package corpustest

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Pattern draws a deterministic grayscale image for identity seed and
// sample variant. Different seeds give clearly different textures.
func Pattern(seed, variant, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	period := 6 + seed*7
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := ((x+variant)/period + (y*(seed+1))/period) % 2 * 170
			v += (x*y + seed*31 + variant*3) % 40
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// WriteImage encodes img into path, picking the encoder from the extension.
func WriteImage(t testing.TB, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatal(err)
	}
}

// Identity describes one person directory to generate.
type Identity struct {
	Name    string
	Samples int
}

// Tree writes root/<name>/<n>.png for every identity and returns root.
func Tree(t testing.TB, root string, ids ...Identity) string {
	t.Helper()
	for seed, id := range ids {
		for n := 0; n < id.Samples; n++ {
			name := filepath.Join(root, id.Name, string(rune('a'+n))+".png")
			WriteImage(t, name, Pattern(seed, n, 120+n*10, 160))
		}
	}
	return root
}
