package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Environment variables read by ApplyEnv.
const (
	EnvHeadless   = "HEADLESS"
	EnvModel      = "DETECTA_MODEL"
	EnvConfidence = "DETECTA_CONFIDENCE"
	EnvStore      = "DETECTA_STORE"
	EnvBackend    = "DETECTA_BACKEND"
	EnvLogLevel   = "DETECTA_LOG_LEVEL"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c from the environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvHeadless); ok {
		c.Headless = IsTruthy(v)
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Model.Path = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Model.Backend = v
	}
	if v, ok := lookup(EnvConfidence); ok && v != "" {
		conf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s=%q is not a number", EnvConfidence, v)
		}
		c.Detection.Confidence = conf
	}
	if v, ok := lookup(EnvStore); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
		case "off", "none", "false", "0":
			c.Store.Disabled = true
		default:
			c.Store.Path = v
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// IsTruthy reports whether an environment flag value means "on": "1" or
// "true" in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true":
		return true
	default:
		return false
	}
}
