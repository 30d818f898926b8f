// Package facerec wraps the OpenCV LBPH face recognizer: training on the
// corpus, persisting the model together with its metadata, and scoring
// single face crops.
//
// The OpenCV side rejection threshold is left unset, so Predict always
// reports the nearest identity and its raw distance. Gating is up to the
// caller.
package facerec

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/abihf/facewatch/corpus"
	"github.com/abihf/facewatch/errdefs"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/utils/fsutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

type Model struct {
	rec     *contrib.LBPHFaceRecognizer
	params  facematch.Params
	meta    *Metadata
	trained bool
}

// New creates an untrained model configured with params.
func New(params facematch.Params) (*Model, error) {
	if params.Radius <= 0 || params.Neighbors <= 0 || params.GridX <= 0 || params.GridY <= 0 {
		return nil, errors.Errorf("invalid LBPH parameters %+v", params)
	}
	rec := contrib.NewLBPHFaceRecognizer()
	rec.SetRadius(params.Radius)
	rec.SetNeighbors(params.Neighbors)
	rec.SetGridX(params.GridX)
	rec.SetGridY(params.GridY)
	return &Model{rec: rec, params: params}, nil
}

// Fit trains the model on every sample.
func (m *Model) Fit(samples []corpus.Sample) error {
	if len(samples) == 0 {
		return errors.Wrap(errdefs.ErrEmptyCorpus, "no samples to fit")
	}

	mats := make([]gocv.Mat, 0, len(samples))
	defer func() {
		for _, mat := range mats {
			mat.Close()
		}
	}()

	ids := make([]int, 0, len(samples))
	identities := map[int]bool{}
	for _, s := range samples {
		if s.Image == nil || s.Image.Bounds() != sampleBounds {
			return errors.Errorf("sample %s is not %dx%d", s.Path, facematch.SampleSize, facematch.SampleSize)
		}
		mat, err := gocv.ImageGrayToMatGray(s.Image)
		if err != nil {
			return errors.Wrapf(err, "can not convert sample %s", s.Path)
		}
		mats = append(mats, mat)
		ids = append(ids, s.ID)
		identities[s.ID] = true
	}

	if err := m.rec.Train(mats, ids); err != nil {
		m.trained = false
		m.meta = nil
		return errors.Wrap(err, "recognizer training failed")
	}
	m.trained = true
	m.meta = &Metadata{
		Format:     metadataFormat,
		Version:    metadataVersion,
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Params:     m.params,
		SampleSize: facematch.SampleSize,
		Samples:    len(samples),
		Identities: len(identities),
		Labels:     maxID(ids) + 1,
	}
	return nil
}

// FitCorpus trains on c and records the size of its label registry, which
// may list identities without any usable sample.
func (m *Model) FitCorpus(c *corpus.Corpus) error {
	if err := m.Fit(c.Samples); err != nil {
		return err
	}
	m.meta.Labels = max(m.meta.Labels, c.Registry.Len())
	return nil
}

func maxID(ids []int) int {
	hi := -1
	for _, id := range ids {
		hi = max(hi, id)
	}
	return hi
}

var sampleBounds = image.Rect(0, 0, facematch.SampleSize, facematch.SampleSize)

// Save writes the model to path and its metadata to MetadataPath(path).
// The model file is replaced atomically.
func (m *Model) Save(path string) error {
	if !m.trained || m.meta == nil {
		return errors.New("model is not trained")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "can not create directory for %s", path)
	}

	meta := *m.meta
	err := fsutil.Replace(path, func(tmp string) error {
		if err := m.rec.SaveFile(tmp); err != nil {
			return errors.Wrap(err, "recognizer could not write the model")
		}
		info, err := os.Stat(tmp)
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return errors.New("recognizer wrote an empty file")
		}
		meta.SHA256, err = fileSHA256(tmp)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "can not save model %s", path)
	}

	if err := writeMetadata(MetadataPath(path), &meta); err != nil {
		return errors.Wrapf(err, "can not save metadata for %s", path)
	}
	m.meta = &meta
	return nil
}

// Load reads a model saved by Save. The stored parameters must equal
// params.
func Load(path string, params facematch.Params) (*Model, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errdefs.ErrModelNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can not stat model %s", path)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s is not a model file", path)
	}

	meta, err := ReadMetadata(path)
	if err != nil {
		return nil, err
	}
	if err := meta.check(path, params); err != nil {
		return nil, err
	}

	m, err := New(params)
	if err != nil {
		return nil, err
	}
	if err := m.rec.LoadFile(path); err != nil {
		m.Close()
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s: %v", path, err)
	}
	if n := m.rec.GetNeighbors(); n != params.Neighbors {
		m.Close()
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s: stored neighbors %d, want %d",
			path, n, params.Neighbors)
	}

	m.meta = meta
	m.trained = true
	return m, nil
}

// Predict scores one face crop, which must be a SampleSize square single
// channel Mat. A result without a usable identity has ID -1 and an
// infinite distance.
func (m *Model) Predict(face gocv.Mat) (facematch.Prediction, error) {
	if !m.trained {
		return facematch.Prediction{}, errors.New("model is not trained")
	}
	if face.Empty() {
		return facematch.Prediction{}, errors.New("empty face image")
	}
	if face.Rows() != facematch.SampleSize || face.Cols() != facematch.SampleSize || face.Channels() != 1 {
		return facematch.Prediction{}, errors.Errorf("face image is %dx%dx%d, want %dx%dx1",
			face.Cols(), face.Rows(), face.Channels(), facematch.SampleSize, facematch.SampleSize)
	}

	res := m.rec.PredictExtendedResponse(face)
	dist := float64(res.Confidence)
	if res.Label < 0 || math.IsNaN(dist) || math.IsInf(dist, 0) || dist < 0 {
		return facematch.Prediction{ID: -1, Distance: math.Inf(1)}, nil
	}
	return facematch.Prediction{ID: int(res.Label), Distance: dist}, nil
}

// Metadata describes the trained model, nil before Fit or Load.
func (m *Model) Metadata() *Metadata {
	return m.meta
}

func (m *Model) Params() facematch.Params {
	return m.params
}

func (m *Model) Close() error {
	if m.rec == nil {
		return nil
	}
	m.rec.Close()
	m.rec = nil
	m.trained = false
	return nil
}
