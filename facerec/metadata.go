package facerec

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/abihf/facewatch/errdefs"
	"github.com/abihf/facewatch/facematch"
	"github.com/abihf/facewatch/utils/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	metadataFormat  = "facewatch-lbph"
	metadataVersion = 1
	metadataSuffix  = ".meta.yaml"
)

// Metadata is stored next to the OpenCV model file. It carries what the
// OpenCV format does not: the hyperparameters the model was built with
// and a checksum binding the two files together.
type Metadata struct {
	Format     string           `yaml:"format"`
	Version    int              `yaml:"version"`
	RunID      string           `yaml:"run_id"`
	CreatedAt  time.Time        `yaml:"created_at"`
	Params     facematch.Params `yaml:"params"`
	SampleSize int              `yaml:"sample_size"`
	Samples    int              `yaml:"samples"`
	Identities int              `yaml:"identities"`
	Labels     int              `yaml:"labels,omitempty"`
	SHA256     string           `yaml:"model_sha256"`
}

// MetadataPath returns the sidecar path for a model file.
func MetadataPath(modelPath string) string {
	return modelPath + metadataSuffix
}

func writeMetadata(path string, meta *Metadata) error {
	return fsutil.WriteFile(path, 0o644, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(meta); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadMetadata loads and checks the sidecar of a model file.
func ReadMetadata(modelPath string) (*Metadata, error) {
	data, err := os.ReadFile(MetadataPath(modelPath))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s: metadata file missing", modelPath)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can not read metadata of %s", modelPath)
	}

	meta := &Metadata{}
	if err := yaml.Unmarshal(data, meta); err != nil {
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s: metadata: %v", modelPath, err)
	}
	if meta.Format != metadataFormat || meta.Version != metadataVersion {
		return nil, errors.Wrapf(errdefs.ErrModelCorrupt, "%s: unsupported format %q version %d",
			modelPath, meta.Format, meta.Version)
	}
	return meta, nil
}

// check verifies meta against the expected parameters and the model file.
func (meta *Metadata) check(modelPath string, params facematch.Params) error {
	if meta.Params != params {
		return errors.Wrapf(errdefs.ErrModelCorrupt, "%s: trained with %+v, want %+v",
			modelPath, meta.Params, params)
	}
	if meta.SampleSize != facematch.SampleSize {
		return errors.Wrapf(errdefs.ErrModelCorrupt, "%s: trained on %dpx samples, want %dpx",
			modelPath, meta.SampleSize, facematch.SampleSize)
	}
	sum, err := fileSHA256(modelPath)
	if err != nil {
		return errors.Wrapf(err, "can not hash %s", modelPath)
	}
	if sum != meta.SHA256 {
		return errors.Wrapf(errdefs.ErrModelCorrupt, "%s: checksum mismatch", modelPath)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
