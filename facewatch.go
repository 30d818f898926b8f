// Package facewatch trains an LBPH face model from a directory of labelled
// samples and runs live recognition against it.
//
// Everything lives under one data directory:
//
//	data/train/<name>/*.png                    samples, one directory per person
//	data/face_model.yml                        trained model
//	data/face_model.yml.meta.yaml              model metadata
//	data/labels.txt                            "id;name" per line
//	data/haarcascade_frontalface_default.xml   face detector
package facewatch

import (
	"io"
	"log/slog"

	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/corpus"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/facerec"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

type TrainOptions struct {
	// Progress receives a progress bar while samples load. Nil disables it.
	Progress io.Writer
}

// TrainReport summarizes a finished training run.
type TrainReport struct {
	// Identities holds the names with at least one sample, in id order.
	Identities []string
	// Empty holds the names that kept a label but had no usable sample.
	Empty      []string
	Samples    int
	Skipped    int
	ModelPath  string
	LabelsPath string
	RunID      string
}

// Train builds a model from conf.TrainDir() and writes the model and label
// files. Nothing is written unless the corpus yields at least one sample.
func Train(conf *config.Config, opts TrainOptions) (*TrainReport, error) {
	layout, err := corpus.Discover(conf.TrainDir())
	if err != nil {
		return nil, err
	}
	slog.Info("Loading training samples", "dir", layout.Root,
		"identities", len(layout.Identities), "files", layout.Files())

	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	bar := progressbar.NewOptions(layout.Files(),
		progressbar.OptionSetDescription("Loading samples"),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
	)
	c, err := layout.Load(corpus.WithProgress(func(string, bool) {
		bar.Add(1)
	}))
	bar.Finish()
	if err != nil {
		return nil, err
	}

	model, err := facerec.New(facematch.DefaultParams)
	if err != nil {
		return nil, err
	}
	defer model.Close()

	if err := model.FitCorpus(c); err != nil {
		return nil, errors.Wrap(err, "can not fit model")
	}
	if err := model.Save(conf.ModelPath()); err != nil {
		return nil, err
	}
	if err := c.Registry.SaveFile(conf.LabelsPath()); err != nil {
		return nil, err
	}

	trained := map[int]bool{}
	for _, s := range c.Samples {
		trained[s.ID] = true
	}
	report := &TrainReport{
		Samples:    len(c.Samples),
		Skipped:    c.Skipped,
		ModelPath:  conf.ModelPath(),
		LabelsPath: conf.LabelsPath(),
		RunID:      model.Metadata().RunID,
	}
	for _, id := range c.Registry.IDs() {
		name := c.Registry.Name(id)
		if trained[id] {
			report.Identities = append(report.Identities, name)
		} else {
			report.Empty = append(report.Empty, name)
			slog.Warn("Identity has no usable samples", "id", id, "name", name)
		}
	}
	slog.Info("Model trained", "identities", len(report.Identities),
		"samples", report.Samples, "skipped", report.Skipped, "run_id", report.RunID)
	return report, nil
}
