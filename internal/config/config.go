// Package config loads detecta settings from YAML, .env and the environment.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete detecta configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Detection DetectionConfig `yaml:"detection"`
	Labels    LabelsConfig    `yaml:"labels"`
	Colors    ColorsConfig    `yaml:"colors"`
	Output    OutputConfig    `yaml:"output"`
	Stream    StreamConfig    `yaml:"stream"`
	Camera    CameraConfig    `yaml:"camera"`
	Store     StoreConfig     `yaml:"store"`
	Headless  bool            `yaml:"headless"`
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
}

// ModelConfig selects and tunes the detector.
type ModelConfig struct {
	Path           string  `yaml:"path"`
	ConfigPath     string  `yaml:"config_path"`  // Darknet/Caffe network description
	ClassesPath    string  `yaml:"classes_path"` // one class name per line
	Backend        string  `yaml:"backend"`      // dnn, onnx, service, mock
	InputSize      int     `yaml:"input_size"`
	NMSThreshold   float64 `yaml:"nms_threshold"`
	NetBackend     string  `yaml:"net_backend"`
	NetTarget      string  `yaml:"net_target"`
	RuntimeLibrary string  `yaml:"runtime_library"`
	ServiceScript  string  `yaml:"service_script"`
	ServicePython  string  `yaml:"service_python"`
}

// DetectionConfig is the filter policy.
type DetectionConfig struct {
	Confidence float64  `yaml:"confidence"`
	Classes    []string `yaml:"classes"` // empty keeps every class
	Profile    string   `yaml:"profile"` // general, traffic, cars
}

// LabelsConfig configures label substitution.
type LabelsConfig struct {
	Substitutions map[string]string `yaml:"substitutions"`
	Stage         string            `yaml:"stage"` // after_filter, before_filter
}

// ColorsConfig overrides the profile palette with hex colors.
type ColorsConfig struct {
	Default string            `yaml:"default"`
	Classes map[string]string `yaml:"classes"`
}

// OutputConfig names annotated artifacts: Dir/Prefix + stem + Suffix + Ext.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	Ext    string `yaml:"ext"`
}

// StreamConfig tunes streaming runs.
type StreamConfig struct {
	FPSInterval     int     `yaml:"fps_interval"` // frames between FPS updates
	CancelKey       string  `yaml:"cancel_key"`
	SkipKey         string  `yaml:"skip_key"`
	SkipFrames      int     `yaml:"skip_frames"`
	Record          bool    `yaml:"record"`
	RecordExt       string  `yaml:"record_ext"` // .avi (MJPG), .mp4 (mp4v), .mkv (XVID)
	MotionGate      bool    `yaml:"motion_gate"`
	MotionThreshold float64 `yaml:"motion_threshold"` // percent of changed pixels
}

// CameraConfig tunes device probing. Requested sizes are hints only.
type CameraConfig struct {
	ProbeIndices int     `yaml:"probe_indices"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FPS          float64 `yaml:"fps"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the general-profile configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:         "yolov8n.onnx",
			Backend:      "dnn",
			InputSize:    640,
			NMSThreshold: 0.45,
			NetBackend:   "default",
			NetTarget:    "cpu",
		},
		Detection: DetectionConfig{
			Confidence: 0.5,
			Profile:    ProfileGeneral,
		},
		Labels: LabelsConfig{
			Stage: "after_filter",
		},
		Output: OutputConfig{
			Dir:    filepath.Join("results", "detect"),
			Suffix: "_detected",
			Ext:    ".jpg",
		},
		Stream: StreamConfig{
			FPSInterval:     30,
			CancelKey:       "q",
			SkipKey:         "s",
			SkipFrames:      30,
			RecordExt:       ".avi",
			MotionThreshold: 1.0,
		},
		Camera: CameraConfig{
			ProbeIndices: 3,
		},
		Store: StoreConfig{
			Path: filepath.Join("results", "detecta.db"),
		},
		LogLevel: "info",
	}
}

// Load builds the configuration in layers: defaults, the optional .env file
// in the working directory, the YAML file at path (skipped when empty), and
// then DETECTA_* and HEADLESS environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	return LoadProfile(path, "")
}

// LoadProfile is Load with a profile chosen by the caller. The profile
// replaces the one named in the file and its presets are applied before
// the file, so explicit file values still win.
func LoadProfile(path, profile string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if profile != "" {
		if err := cfg.ApplyProfile(profile); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := cfg.readFile(path, profile); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// ReadFile overlays the YAML file at path onto c. A profile named in the
// file is applied first so explicit file values win over its presets.
func (c *Config) ReadFile(path string) error {
	return c.readFile(path, "")
}

// readFile is ReadFile with profile, when set, standing in for the file's.
func (c *Config) readFile(path, profile string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	var header struct {
		Detection struct {
			Profile string `yaml:"profile"`
		} `yaml:"detection"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return errors.Wrapf(ErrInvalid, "parse %s: %v", path, err)
	}
	if profile == "" && header.Detection.Profile != "" {
		if err := c.ApplyProfile(header.Detection.Profile); err != nil {
			return err
		}
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(ErrInvalid, "parse %s: %v", path, err)
	}
	if profile != "" {
		c.Detection.Profile = profile
	}
	return nil
}
