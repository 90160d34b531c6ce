package config

import (
	"go.uber.org/zap"

	"github.com/ayusman/detecta/internal/capture"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/render"
	"github.com/ayusman/detecta/internal/sink"
)

// Pipeline returns the filter policy and label substitution.
func (c *Config) Pipeline() detection.Pipeline {
	stage, _ := detection.ParseStage(c.Labels.Stage)
	return detection.Pipeline{
		Policy:    detection.NewPolicy(c.Detection.Confidence, c.Detection.Classes...),
		Relabeler: detection.Relabeler{Substitutions: c.Labels.Substitutions, Stage: stage},
	}
}

// Palette returns the profile palette with the configured overrides.
func (c *Config) Palette() (render.ColorPolicy, error) {
	var base render.ColorPolicy
	switch c.Detection.Profile {
	case ProfileTraffic:
		base = render.TrafficPalette()
	case ProfileCars:
		base = render.CarPalette()
	default:
		base = render.VehiclePalette()
	}
	return base.Overlay(c.Colors.Default, c.Colors.Classes)
}

// Style returns the drawing style of the profile.
func (c *Config) Style() render.Style {
	if c.Detection.Profile == ProfileCars {
		return render.BoldStyle()
	}
	return render.DefaultStyle()
}

// Renderer builds the annotation renderer.
func (c *Config) Renderer() (*render.Renderer, error) {
	colors, err := c.Palette()
	if err != nil {
		return nil, err
	}
	return render.New(colors, c.Style()), nil
}

// Naming returns the artifact naming scheme.
func (c *Config) Naming() sink.Naming {
	return sink.Naming{
		Dir:    c.Output.Dir,
		Prefix: c.Output.Prefix,
		Suffix: c.Output.Suffix,
		Ext:    c.Output.Ext,
	}
}

// DetectorConfig returns the detector settings.
func (c *Config) DetectorConfig(logger *zap.SugaredLogger) detector.Config {
	return detector.Config{
		ModelPath:      c.Model.Path,
		ConfigPath:     c.Model.ConfigPath,
		ClassesPath:    c.Model.ClassesPath,
		Backend:        detector.Backend(c.Model.Backend),
		InputSize:      c.Model.InputSize,
		NMSThreshold:   c.Model.NMSThreshold,
		NetBackend:     c.Model.NetBackend,
		NetTarget:      c.Model.NetTarget,
		RuntimeLibrary: c.Model.RuntimeLibrary,
		ServiceScript:  c.Model.ServiceScript,
		ServicePython:  c.Model.ServicePython,
		Logger:         logger,
	}
}

// CameraConfig returns the device probing settings for this platform.
func (c *Config) CameraConfig(logger *zap.SugaredLogger) capture.CameraConfig {
	cfg := capture.DefaultCameraConfig()
	cfg.ProbeIndices = c.Camera.ProbeIndices
	cfg.Width = c.Camera.Width
	cfg.Height = c.Camera.Height
	cfg.FPS = c.Camera.FPS
	cfg.Logger = logger
	return cfg
}
