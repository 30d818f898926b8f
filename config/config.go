package config

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultFile is read when no config path is given.
const DefaultFile = "facewatch.yaml"

const (
	BackendGocv = "gocv"
	BackendV4L2 = "v4l2"

	DetectorHaar = "haar"
	DetectorDNN  = "dnn"
)

type Config struct {
	DataDir  string   `yaml:"data_dir"`
	CPU      int      `yaml:"cpu"`
	Capture  Capture  `yaml:"capture"`
	Detector Detector `yaml:"detector"`
	Display  Display  `yaml:"display"`
	Enroll   Enroll   `yaml:"enroll"`
}

type Capture struct {
	Device   string `yaml:"device"`
	Backend  string `yaml:"backend"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	SkipDark bool   `yaml:"skip_dark"` // drop badly exposed frames (v4l2 only)
}

type Detector struct {
	Kind         string  `yaml:"kind"`
	Cascade      string  `yaml:"cascade"`
	Prototxt     string  `yaml:"prototxt"`
	Weights      string  `yaml:"weights"`
	Confidence   float64 `yaml:"confidence"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
}

type Display struct {
	Title    string `yaml:"title"`
	Headless bool   `yaml:"headless"`
	KeyDelay int    `yaml:"key_delay_ms"`
}

type Enroll struct {
	Samples  int `yaml:"samples"`
	Interval int `yaml:"interval_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	conf := &Config{}
	if err := yaml.Unmarshal(defaultYAML, conf); err != nil {
		panic("failed to unmarshal embedded default.yaml: " + err.Error())
	}
	return conf
}

// Load reads the YAML file at path over the defaults and applies
// FACEWATCH_* environment overrides. An empty path means FACEWATCH_CONFIG
// or DefaultFile; a missing DefaultFile is not an error, while a path given
// by argument or FACEWATCH_CONFIG must be readable.
func Load(path string) (*Config, error) {
	conf := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("FACEWATCH_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, conf); err != nil {
			return nil, errors.Wrapf(err, "invalid config file %s", path)
		}
	case explicit:
		return nil, errors.Wrapf(err, "can not read config file %s", path)
	case os.IsNotExist(err):
	default:
		slog.Warn("Failed to load config file", "path", path, "error", err)
	}

	applyEnv(conf)

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func decode(data []byte, conf *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(conf)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func applyEnv(conf *Config) {
	conf.DataDir = envString("FACEWATCH_DATA_DIR", conf.DataDir)
	conf.CPU = envInt("FACEWATCH_CPU", conf.CPU)
	conf.Capture.Device = envString("FACEWATCH_DEVICE", conf.Capture.Device)
	conf.Capture.Backend = envString("FACEWATCH_BACKEND", conf.Capture.Backend)
	conf.Detector.Kind = envString("FACEWATCH_DETECTOR", conf.Detector.Kind)
	conf.Detector.Cascade = envString("FACEWATCH_CASCADE", conf.Detector.Cascade)
	conf.Display.Headless = envBool("FACEWATCH_HEADLESS", conf.Display.Headless)
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt returns defaultVal if the variable is unset or not an integer.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	slog.Warn("Ignoring invalid integer in environment", "key", key, "value", s)
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	slog.Warn("Ignoring invalid boolean in environment", "key", key, "value", s)
	return defaultVal
}

func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data_dir must be set")
	case c.Capture.Device == "":
		return errors.New("capture.device must be set")
	case c.Capture.Backend != BackendGocv && c.Capture.Backend != BackendV4L2:
		return errors.Errorf("unknown capture.backend %q", c.Capture.Backend)
	case c.Capture.Width <= 0 || c.Capture.Height <= 0:
		return errors.Errorf("invalid capture size %dx%d", c.Capture.Width, c.Capture.Height)
	case c.Detector.Kind != DetectorHaar && c.Detector.Kind != DetectorDNN:
		return errors.Errorf("unknown detector.kind %q", c.Detector.Kind)
	case c.Detector.ScaleFactor <= 1:
		return errors.Errorf("detector.scale_factor must be greater than 1, got %v", c.Detector.ScaleFactor)
	case c.Detector.MinNeighbors < 0 || c.Detector.MinSize < 0:
		return errors.New("detector.min_neighbors and detector.min_size must not be negative")
	case c.Detector.Confidence <= 0 || c.Detector.Confidence >= 1:
		return errors.Errorf("detector.confidence must be in (0, 1), got %v", c.Detector.Confidence)
	case c.Display.KeyDelay <= 0:
		return errors.New("display.key_delay_ms must be positive")
	case c.Enroll.Samples <= 0 || c.Enroll.Interval < 0:
		return errors.New("enroll.samples must be positive and enroll.interval_ms not negative")
	}
	return nil
}

// Resolve returns p unchanged when absolute, otherwise relative to DataDir.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// TrainDir is the corpus root, one subdirectory per identity.
func (c *Config) TrainDir() string {
	return filepath.Join(c.DataDir, "train")
}

// ModelPath is where the trained model is stored.
func (c *Config) ModelPath() string {
	return filepath.Join(c.DataDir, "face_model.yml")
}

// LabelsPath is where the label registry is stored.
func (c *Config) LabelsPath() string {
	return filepath.Join(c.DataDir, "labels.txt")
}
