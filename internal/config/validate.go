package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/logging"
)

var backends = map[string]bool{"dnn": true, "onnx": true, "service": true, "mock": true}

// Validate checks cfg and fills defaults for zero values.
func Validate(cfg *Config) error {
	d := Default()

	if cfg.Model.Path == "" {
		return errors.Wrap(ErrInvalid, "model.path is required")
	}
	cfg.Model.Backend = strings.ToLower(cfg.Model.Backend)
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = d.Model.Backend
	}
	if !backends[cfg.Model.Backend] {
		return errors.Wrapf(ErrInvalid, "model.backend %q must be dnn, onnx, service or mock", cfg.Model.Backend)
	}
	if cfg.Model.InputSize <= 0 {
		cfg.Model.InputSize = d.Model.InputSize
	}
	if cfg.Model.InputSize%32 != 0 {
		return errors.Wrapf(ErrInvalid, "model.input_size %d must be a multiple of 32", cfg.Model.InputSize)
	}
	if cfg.Model.NMSThreshold <= 0 {
		cfg.Model.NMSThreshold = d.Model.NMSThreshold
	}
	if cfg.Model.NMSThreshold > 1 {
		return errors.Wrapf(ErrInvalid, "model.nms_threshold %v must be in (0,1]", cfg.Model.NMSThreshold)
	}

	if cfg.Detection.Confidence < 0 || cfg.Detection.Confidence > 1 {
		return errors.Wrapf(ErrInvalid, "detection.confidence %v must be in [0,1]", cfg.Detection.Confidence)
	}
	if cfg.Detection.Profile == "" {
		cfg.Detection.Profile = ProfileGeneral
	}
	switch cfg.Detection.Profile {
	case ProfileGeneral, ProfileTraffic, ProfileCars:
	default:
		return errors.Wrapf(ErrInvalid, "unknown profile %q", cfg.Detection.Profile)
	}

	if _, err := detection.ParseStage(cfg.Labels.Stage); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}

	if _, err := cfg.Palette(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = d.Output.Dir
	}
	if cfg.Output.Ext == "" {
		cfg.Output.Ext = d.Output.Ext
	}
	if !strings.HasPrefix(cfg.Output.Ext, ".") {
		cfg.Output.Ext = "." + cfg.Output.Ext
	}

	if cfg.Stream.RecordExt == "" {
		cfg.Stream.RecordExt = d.Stream.RecordExt
	}
	if !strings.HasPrefix(cfg.Stream.RecordExt, ".") {
		cfg.Stream.RecordExt = "." + cfg.Stream.RecordExt
	}
	if cfg.Stream.FPSInterval <= 0 {
		cfg.Stream.FPSInterval = d.Stream.FPSInterval
	}
	if cfg.Stream.CancelKey == "" {
		cfg.Stream.CancelKey = d.Stream.CancelKey
	}
	if cfg.Stream.SkipKey == "" {
		cfg.Stream.SkipKey = d.Stream.SkipKey
	}
	if len(cfg.Stream.CancelKey) != 1 || len(cfg.Stream.SkipKey) != 1 {
		return errors.Wrap(ErrInvalid, "stream.cancel_key and stream.skip_key must be single characters")
	}
	if cfg.Stream.CancelKey == cfg.Stream.SkipKey {
		return errors.Wrapf(ErrInvalid, "stream.cancel_key and stream.skip_key are both %q", cfg.Stream.CancelKey)
	}
	if cfg.Stream.SkipFrames < 0 {
		return errors.Wrapf(ErrInvalid, "stream.skip_frames %d must not be negative", cfg.Stream.SkipFrames)
	}
	if cfg.Stream.SkipFrames == 0 {
		cfg.Stream.SkipFrames = d.Stream.SkipFrames
	}
	if cfg.Stream.MotionThreshold <= 0 {
		cfg.Stream.MotionThreshold = d.Stream.MotionThreshold
	}

	if cfg.Camera.ProbeIndices <= 0 {
		cfg.Camera.ProbeIndices = d.Camera.ProbeIndices
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 || cfg.Camera.FPS < 0 {
		return errors.Wrap(ErrInvalid, "camera width, height and fps must not be negative")
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = d.Store.Path
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}

	return nil
}
