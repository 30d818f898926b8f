package facewatch

import (
	"context"
	"image"
	"log/slog"
	"math"

	"github.com/abihf/facewatch/capture"
	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/detect"
	"github.com/abihf/facewatch/display"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/facerec"
	"github.com/abihf/facewatch/labels"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Recognizer scores a SampleSize square grayscale face crop.
type Recognizer interface {
	Predict(face gocv.Mat) (facematch.Prediction, error)
	Close() error
}

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "invalid"
}

// Recognition is one face found in a frame.
type Recognition struct {
	Box        image.Rectangle // expanded detector box
	Prediction facematch.Prediction
	Name       string // registered name or labels.Unknown
}

// Caption is the text drawn above the face.
func (r Recognition) Caption() string {
	return facematch.Caption(r.Name, r.Prediction.Distance)
}

// Session owns the capture device, detector, model and registry for one
// run of the recognition loop.
type Session struct {
	source    capture.Source
	localizer detect.Localizer
	model     Recognizer
	registry  *labels.Registry
	display   display.Display
	threshold float64

	state  State
	frames int
	faces  int

	gray gocv.Mat
	face gocv.Mat
}

type Option func(*sessionOptions)

type sessionOptions struct {
	display display.Display
}

// WithDisplay replaces the display chosen from the configuration.
func WithDisplay(d display.Display) Option {
	return func(o *sessionOptions) {
		o.display = d
	}
}

// Start acquires everything the loop needs: the capture device, then the
// face detector, then the model and the label registry. On failure the
// resources acquired so far are released.
func Start(conf *config.Config, opts ...Option) (s *Session, err error) {
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	source, err := capture.Open(conf.Capture)
	if err != nil {
		return nil, err
	}
	closers = append(closers, source.Close)

	localizer, err := detect.Open(conf)
	if err != nil {
		return nil, err
	}
	closers = append(closers, localizer.Close)

	model, err := facerec.Load(conf.ModelPath(), facematch.DefaultParams)
	if err != nil {
		return nil, err
	}
	closers = append(closers, model.Close)

	registry, err := labels.LoadFile(conf.LabelsPath())
	if err != nil {
		return nil, err
	}
	if meta := model.Metadata(); meta != nil && meta.Labels > 0 && meta.Labels != registry.Len() {
		slog.Warn("Model and label file disagree, retrain to fix",
			"model_labels", meta.Labels, "labels", registry.Len())
	}

	disp := o.display
	if disp == nil {
		if conf.Display.Headless {
			disp = display.Headless{}
		} else {
			disp = display.NewWindow(conf.Display.Title, conf.Display.KeyDelay)
		}
	}

	slog.Info("Recognition ready", "device", conf.Capture.Device,
		"detector", conf.Detector.Kind, "identities", registry.Len())
	return newSession(source, localizer, model, registry, disp), nil
}

func newSession(source capture.Source, localizer detect.Localizer, model Recognizer,
	registry *labels.Registry, disp display.Display) *Session {
	return &Session{
		source:    source,
		localizer: localizer,
		model:     model,
		registry:  registry,
		display:   disp,
		threshold: facematch.DefaultParams.Threshold,
		state:     StateStarting,
		gray:      gocv.NewMat(),
		face:      gocv.NewMat(),
	}
}

func (s *Session) State() State { return s.state }

// Frames returns how many frames were presented.
func (s *Session) Frames() int { return s.frames }

// Faces returns how many faces were recognized or rejected in total.
func (s *Session) Faces() int { return s.faces }

// Run processes frames until the escape key, the end of the stream or
// cancellation of ctx, then closes the session. Cancellation is checked
// once per frame.
func (s *Session) Run(ctx context.Context) error {
	if s.state != StateStarting {
		return errors.Errorf("session is %s", s.state)
	}
	s.state = StateRunning
	defer s.Close()
	daemon.SdNotify(false, daemon.SdNotifyReady)

	frame := gocv.NewMat()
	defer frame.Close()

	reason := "escape key"
	for {
		if ctx.Err() != nil {
			reason = "cancelled"
			break
		}
		if !s.source.Read(&frame) || frame.Empty() {
			reason = "end of stream"
			break
		}

		for _, r := range s.ProcessFrame(frame) {
			display.Annotate(&frame, r.Box, r.Caption())
		}
		s.display.Show(frame)
		s.frames++

		if s.display.PollKey() == display.KeyEscape {
			break
		}
	}

	slog.Info("Recognition stopped", "reason", reason, "frames", s.frames, "faces", s.faces)
	return nil
}

// ProcessFrame finds, scores and gates every face in a BGR or grayscale
// frame. It never fails: a frame that can not be processed has no faces,
// a face that can not be scored is Unknown.
func (s *Session) ProcessFrame(frame gocv.Mat) []Recognition {
	if err := detect.Preprocess(frame, &s.gray); err != nil {
		slog.Debug("Skipping frame", "error", err)
		return nil
	}

	boxes := s.localizer.Detect(s.gray)
	bounds := image.Rect(0, 0, s.gray.Cols(), s.gray.Rows())

	recs := make([]Recognition, 0, len(boxes))
	for _, raw := range boxes {
		box := facematch.ExpandBox(raw, bounds)
		if box.Empty() {
			continue
		}

		pred, err := s.predict(box)
		if err != nil {
			slog.Debug("Prediction failed", "box", box, "error", err)
			pred = facematch.Prediction{ID: -1, Distance: math.Inf(1)}
		}
		recs = append(recs, Recognition{
			Box:        box,
			Prediction: pred,
			Name:       facematch.Resolve(s.registry, pred, s.threshold),
		})
	}
	s.faces += len(recs)
	return recs
}

func (s *Session) predict(box image.Rectangle) (facematch.Prediction, error) {
	if err := cropFace(s.gray, box, &s.face); err != nil {
		return facematch.Prediction{}, err
	}
	return s.model.Predict(s.face)
}

// cropFace cuts box out of gray and scales it to the sample size.
func cropFace(gray gocv.Mat, box image.Rectangle, dst *gocv.Mat) error {
	if !box.In(image.Rect(0, 0, gray.Cols(), gray.Rows())) || box.Empty() {
		return errors.Errorf("box %v outside %dx%d frame", box, gray.Cols(), gray.Rows())
	}
	region := gray.Region(box)
	defer region.Close()

	size := image.Pt(facematch.SampleSize, facematch.SampleSize)
	if err := gocv.Resize(region, dst, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return errors.Wrapf(err, "can not scale face %v", box)
	}
	return nil
}

// Close releases the display, model, detector and capture device. It is
// safe to call more than once.
func (s *Session) Close() error {
	if s.state == StateStopped {
		return nil
	}
	if s.state == StateRunning {
		daemon.SdNotify(false, daemon.SdNotifyStopping)
	}
	s.state = StateStopped

	var first error
	for _, c := range []func() error{s.display.Close, s.model.Close, s.localizer.Close, s.source.Close} {
		if err := c(); err != nil {
			slog.Debug("Release failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	s.gray.Close()
	s.face.Close()
	return first
}
