package config

import (
	"sort"

	"github.com/pkg/errors"
)

// Profile names.
const (
	ProfileGeneral = "general"
	ProfileTraffic = "traffic"
	ProfileCars    = "cars"
)

// TrafficClasses are the road-scene classes the traffic profile keeps.
var TrafficClasses = []string{
	"person", "bicycle", "car", "motorcycle",
	"bus", "truck", "traffic light", "stop sign",
}

// Profiles returns the known profile names, sorted.
func Profiles() []string {
	names := []string{ProfileGeneral, ProfileTraffic, ProfileCars}
	sort.Strings(names)
	return names
}

// ApplyProfile presets the allowlist, labels and naming of a profile. The
// palette and style follow the profile name (see Palette and Style).
// Values set afterwards (file, environment, flags) still win.
func (c *Config) ApplyProfile(name string) error {
	switch name {
	case ProfileGeneral:
		d := Default()
		c.Detection.Classes = nil
		c.Labels.Substitutions = nil
		c.Output = d.Output
	case ProfileTraffic:
		c.Detection.Classes = append([]string(nil), TrafficClasses...)
		c.Labels.Substitutions = nil
		c.Output = OutputConfig{Dir: "results", Prefix: "detect_", Suffix: "_detected", Ext: ".jpg"}
	case ProfileCars:
		c.Detection.Classes = []string{"car"}
		c.Labels = LabelsConfig{Substitutions: map[string]string{"car": "Car"}, Stage: "after_filter"}
		c.Output = OutputConfig{Dir: "results", Prefix: "cars_detected_", Ext: ".jpg"}
	default:
		return errors.Wrapf(ErrInvalid, "unknown profile %q (want one of %v)", name, Profiles())
	}
	c.Detection.Profile = name
	return nil
}
