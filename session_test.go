package facewatch

import (
	"context"
	"image"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/abihf/facewatch/corpus/corpustest"
	"github.com/abihf/facewatch/display"
	"github.com/abihf/facewatch/errdefs"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/labels"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type fakeSource struct {
	frames []gocv.Mat
	next   int
	closed bool
}

func (f *fakeSource) Read(dst *gocv.Mat) bool {
	if f.next >= len(f.frames) {
		return false
	}
	f.frames[f.next].CopyTo(dst)
	f.next++
	return true
}

func (f *fakeSource) Close() error {
	f.closed = true
	for _, m := range f.frames {
		m.Close()
	}
	return nil
}

type fakeLocalizer struct {
	boxes  []image.Rectangle
	calls  int
	closed bool
}

func (f *fakeLocalizer) Detect(gocv.Mat) []image.Rectangle {
	f.calls++
	return append([]image.Rectangle(nil), f.boxes...)
}

func (f *fakeLocalizer) Close() error {
	f.closed = true
	return nil
}

type fakeRecognizer struct {
	predict func(face gocv.Mat) (facematch.Prediction, error)
	calls   int
	closed  bool
}

func (f *fakeRecognizer) Predict(face gocv.Mat) (facematch.Prediction, error) {
	f.calls++
	return f.predict(face)
}

func (f *fakeRecognizer) Close() error {
	f.closed = true
	return nil
}

type fakeDisplay struct {
	keys   []int
	shown  int
	last   gocv.Mat
	closed bool
}

func (f *fakeDisplay) Show(frame gocv.Mat) {
	f.shown++
	f.last.Close()
	f.last = frame.Clone()
}

func (f *fakeDisplay) PollKey() int {
	if len(f.keys) == 0 {
		return -1
	}
	k := f.keys[0]
	f.keys = f.keys[1:]
	return k
}

func (f *fakeDisplay) Close() error {
	f.closed = true
	return nil
}

func blankFrames(n int) []gocv.Mat {
	frames := make([]gocv.Mat, n)
	for i := range frames {
		frames[i] = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	}
	return frames
}

func registry(t *testing.T) *labels.Registry {
	t.Helper()
	reg, err := labels.Build([]string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func fixed(p facematch.Prediction) func(gocv.Mat) (facematch.Prediction, error) {
	return func(gocv.Mat) (facematch.Prediction, error) { return p, nil }
}

type fixture struct {
	source    *fakeSource
	localizer *fakeLocalizer
	model     *fakeRecognizer
	display   *fakeDisplay
	session   *Session
}

func newFixture(t *testing.T, frames int, boxes []image.Rectangle, predict func(gocv.Mat) (facematch.Prediction, error)) *fixture {
	f := &fixture{
		source:    &fakeSource{frames: blankFrames(frames)},
		localizer: &fakeLocalizer{boxes: boxes},
		model:     &fakeRecognizer{predict: predict},
		display:   &fakeDisplay{last: gocv.NewMat()},
	}
	f.session = newSession(f.source, f.localizer, f.model, registry(t), f.display)
	t.Cleanup(func() {
		f.session.Close()
		f.display.last.Close()
	})
	return f
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	if f.session.State() != StateStopped {
		t.Errorf("state = %s, want stopped", f.session.State())
	}
	if !f.source.closed || !f.localizer.closed || !f.model.closed || !f.display.closed {
		t.Errorf("resources not released: source=%v localizer=%v model=%v display=%v",
			f.source.closed, f.localizer.closed, f.model.closed, f.display.closed)
	}
}

func TestRunZeroFaces(t *testing.T) {
	f := newFixture(t, 3, nil, fixed(facematch.Prediction{}))

	if err := f.session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.display.shown != 3 {
		t.Errorf("shown %d frames, want 3", f.display.shown)
	}
	if f.localizer.calls != 3 {
		t.Errorf("detector ran %d times, want 3", f.localizer.calls)
	}
	if f.model.calls != 0 {
		t.Errorf("model ran %d times without faces", f.model.calls)
	}
	if sum := f.display.last.Sum(); sum.Val1 != 0 || sum.Val2 != 0 || sum.Val3 != 0 {
		t.Errorf("frame without faces was annotated: %+v", sum)
	}
	f.assertReleased(t)
}

func TestRunAnnotatesFaces(t *testing.T) {
	f := newFixture(t, 1, []image.Rectangle{image.Rect(50, 50, 90, 90)},
		fixed(facematch.Prediction{ID: 0, Distance: 20}))

	if err := f.session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum := f.display.last.Sum(); sum.Val2 == 0 {
		t.Error("recognized face was not drawn")
	}
	if f.session.Faces() != 1 || f.session.Frames() != 1 {
		t.Errorf("faces=%d frames=%d, want 1 and 1", f.session.Faces(), f.session.Frames())
	}
}

func TestRunEscapeStops(t *testing.T) {
	f := newFixture(t, 5, nil, fixed(facematch.Prediction{}))
	f.display.keys = []int{-1, display.KeyEscape}

	if err := f.session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.display.shown != 2 {
		t.Errorf("shown %d frames, want 2", f.display.shown)
	}
	f.assertReleased(t)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, 5, nil, fixed(facematch.Prediction{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.session.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.display.shown != 0 {
		t.Errorf("shown %d frames after cancel", f.display.shown)
	}
	f.assertReleased(t)
}

func TestRunOnlyOnce(t *testing.T) {
	f := newFixture(t, 0, nil, fixed(facematch.Prediction{}))
	if err := f.session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := f.session.Run(context.Background()); err == nil {
		t.Error("second Run succeeded")
	}
	if err := f.session.Close(); err != nil {
		t.Errorf("Close after stop: %v", err)
	}
}

func TestProcessFrameGate(t *testing.T) {
	box := image.Rect(50, 50, 90, 90)
	expanded := image.Rect(40, 40, 100, 100)

	tests := []struct {
		name     string
		predict  func(gocv.Mat) (facematch.Prediction, error)
		wantName string
		wantDist float64
	}{
		{"accepted", fixed(facematch.Prediction{ID: 1, Distance: 42}), "bob", 42},
		{"at threshold", fixed(facematch.Prediction{ID: 1, Distance: 75}), labels.Unknown, 75},
		{"too far", fixed(facematch.Prediction{ID: 0, Distance: 99.5}), labels.Unknown, 99.5},
		{"unregistered id", fixed(facematch.Prediction{ID: 9, Distance: 10}), labels.Unknown, 10},
		{
			name: "prediction error",
			predict: func(gocv.Mat) (facematch.Prediction, error) {
				return facematch.Prediction{}, errors.New("boom")
			},
			wantName: labels.Unknown,
			wantDist: math.Inf(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1, []image.Rectangle{box}, tt.predict)
			recs := f.session.ProcessFrame(f.source.frames[0])
			if len(recs) != 1 {
				t.Fatalf("got %d recognitions, want 1", len(recs))
			}
			r := recs[0]
			if r.Box != expanded {
				t.Errorf("box = %v, want %v", r.Box, expanded)
			}
			if r.Name != tt.wantName || r.Prediction.Distance != tt.wantDist {
				t.Errorf("got %q %.1f, want %q %.1f", r.Name, r.Prediction.Distance, tt.wantName, tt.wantDist)
			}
		})
	}
}

func TestProcessFrameCropsCanonicalFace(t *testing.T) {
	var got [3]int
	f := newFixture(t, 1, []image.Rectangle{image.Rect(5, 5, 25, 25)}, func(face gocv.Mat) (facematch.Prediction, error) {
		got = [3]int{face.Cols(), face.Rows(), face.Channels()}
		return facematch.Prediction{ID: 0, Distance: 1}, nil
	})

	recs := f.session.ProcessFrame(f.source.frames[0])
	if len(recs) != 1 || recs[0].Box != image.Rect(0, 0, 30, 30) {
		t.Fatalf("recognitions = %+v", recs)
	}
	if got != [3]int{facematch.SampleSize, facematch.SampleSize, 1} {
		t.Errorf("model saw %dx%dx%d", got[0], got[1], got[2])
	}
	if recs[0].Caption() != "alice (1.0)" {
		t.Errorf("caption = %q", recs[0].Caption())
	}
}

func TestProcessFrameIdempotent(t *testing.T) {
	boxes := []image.Rectangle{image.Rect(50, 50, 90, 90), image.Rect(300, 200, 380, 280)}
	f := newFixture(t, 1, boxes, func(face gocv.Mat) (facematch.Prediction, error) {
		return facematch.Prediction{ID: 0, Distance: face.Mean().Val1}, nil
	})
	frame := f.source.frames[0]
	gocv.RandU(&frame, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	first := f.session.ProcessFrame(frame)
	second := f.session.ProcessFrame(frame)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestProcessFrameEmpty(t *testing.T) {
	f := newFixture(t, 0, []image.Rectangle{image.Rect(0, 0, 10, 10)}, fixed(facematch.Prediction{}))
	empty := gocv.NewMat()
	defer empty.Close()

	if recs := f.session.ProcessFrame(empty); len(recs) != 0 {
		t.Errorf("empty frame gave %+v", recs)
	}
	if f.localizer.calls != 0 {
		t.Error("detector ran on an empty frame")
	}
}

func TestProcessFrameUnsupportedChannels(t *testing.T) {
	box := image.Rect(220, 140, 420, 340)
	f := newFixture(t, 0, []image.Rectangle{box}, fixed(facematch.Prediction{ID: 0, Distance: 10}))

	good := blankFrames(1)[0]
	defer good.Close()
	if recs := f.session.ProcessFrame(good); len(recs) != 1 {
		t.Fatalf("first frame gave %d recognitions, want 1", len(recs))
	}

	// the grayscale buffer still holds the previous frame here
	odd := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC2)
	defer odd.Close()
	if recs := f.session.ProcessFrame(odd); len(recs) != 0 {
		t.Errorf("two channel frame gave %+v", recs)
	}
	if f.localizer.calls != 1 || f.model.calls != 1 {
		t.Errorf("detector ran %d times, model %d times; want once each", f.localizer.calls, f.model.calls)
	}
}

func TestStartDeviceUnavailable(t *testing.T) {
	conf := testConfig(t)
	conf.Capture.Device = filepath.Join(conf.DataDir, "missing.avi")

	_, err := Start(conf)
	if !errors.Is(err, errdefs.ErrDeviceUnavailable) {
		t.Errorf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	if errdefs.ExitCode(err) != errdefs.ExitDeviceUnavailable {
		t.Errorf("exit code = %d", errdefs.ExitCode(err))
	}
}

// imageSequence writes n blank frames and returns an OpenCV image
// sequence pattern for them.
func imageSequence(t *testing.T, dir string, n int) string {
	t.Helper()
	for i, frame := range blankFrames(n) {
		path := filepath.Join(dir, "frame"+string(rune('0'+i))+".png")
		if !gocv.IMWrite(path, frame) {
			t.Fatalf("can not write %s", path)
		}
		frame.Close()
	}
	return filepath.Join(dir, "frame%01d.png")
}

func TestStartResourceFailures(t *testing.T) {
	conf := testConfig(t)
	conf.Capture.Device = imageSequence(t, t.TempDir(), 2)

	_, err := Start(conf)
	if errors.Is(err, errdefs.ErrDeviceUnavailable) {
		t.Skipf("image sequences not supported by this OpenCV build: %v", err)
	}
	if !errors.Is(err, errdefs.ErrResourceLoadFailed) {
		t.Fatalf("Start without cascade = %v, want ErrResourceLoadFailed", err)
	}

	cascade := systemCascade(t)
	conf.Detector.Cascade = cascade
	_, err = Start(conf)
	if !errors.Is(err, errdefs.ErrModelNotFound) {
		t.Errorf("Start without model = %v, want ErrModelNotFound", err)
	}
	if errdefs.ExitCode(err) != errdefs.ExitResourceLoadFailed {
		t.Errorf("exit code = %d", errdefs.ExitCode(err))
	}
}

func TestStartAndRunToEndOfStream(t *testing.T) {
	conf := testConfig(t)
	conf.Detector.Cascade = systemCascade(t)
	conf.Capture.Device = imageSequence(t, t.TempDir(), 3)
	corpustest.Tree(t, conf.TrainDir(),
		corpustest.Identity{Name: "alice", Samples: 3},
		corpustest.Identity{Name: "bob", Samples: 2},
	)

	if _, err := Train(conf, TrainOptions{}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	disp := &fakeDisplay{last: gocv.NewMat()}
	defer disp.last.Close()
	s, err := Start(conf, WithDisplay(disp))
	if errors.Is(err, errdefs.ErrDeviceUnavailable) {
		t.Skipf("image sequences not supported by this OpenCV build: %v", err)
	}
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if disp.shown != 3 || s.Faces() != 0 {
		t.Errorf("shown=%d faces=%d, want 3 and 0", disp.shown, s.Faces())
	}
	if !disp.closed || s.State() != StateStopped {
		t.Error("session not stopped")
	}
}

func systemCascade(t *testing.T) string {
	t.Helper()
	for _, p := range []string{
		"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
		"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
		"/usr/share/opencv/haarcascades/haarcascade_frontalface_default.xml",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("no haar cascade installed")
	return ""
}
