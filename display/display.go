// Package display presents annotated frames and reports key presses.
package display

import (
	"image"
	"image/color"

	"github.com/abihf/facewatch/facematch"
	"gocv.io/x/gocv"
)

// KeyEscape stops the recognition loop.
const KeyEscape = 27

// Display shows frames. PollKey waits briefly for a key press and returns
// its code, or -1.
type Display interface {
	Show(frame gocv.Mat)
	PollKey() int
	Close() error
}

// Window is an OpenCV HighGUI window.
type Window struct {
	window *gocv.Window
	delay  int
}

// NewWindow opens a window titled title. delay is the key poll wait in
// milliseconds.
func NewWindow(title string, delay int) *Window {
	return &Window{window: gocv.NewWindow(title), delay: delay}
}

func (w *Window) Show(frame gocv.Mat) {
	w.window.IMShow(frame)
}

func (w *Window) PollKey() int {
	return w.window.WaitKey(w.delay)
}

func (w *Window) Close() error {
	return w.window.Close()
}

// Headless discards frames, for running without a screen.
type Headless struct{}

func (Headless) Show(gocv.Mat) {}
func (Headless) PollKey() int  { return -1 }
func (Headless) Close() error  { return nil }

var green = color.RGBA{0, 255, 0, 0}

// Annotate draws box and caption on frame, the caption just above the
// top left corner of the box.
func Annotate(frame *gocv.Mat, box image.Rectangle, caption string) {
	gocv.Rectangle(frame, box, green, 2)
	if caption == "" {
		return
	}
	gocv.PutText(frame, caption, facematch.CaptionOrigin(box),
		gocv.FontHersheySimplex, 0.6, green, 2)
}
