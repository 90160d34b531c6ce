package app

import (
	"context"
	"errors"

	"github.com/ayusman/detecta/internal/capture"
	"github.com/ayusman/detecta/internal/config"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/sink"
)

// Error kinds reported in logs and run records.
const (
	KindSourceNotFound    = "SourceNotFoundError"
	KindCameraUnavailable = "CameraUnavailableError"
	KindFrameRead         = "FrameReadError"
	KindModelLoad         = "ModelLoadError"
	KindInference         = "InferenceError"
	KindWrite             = "WriteError"
	KindConfig            = "ConfigError"
	KindCanceled          = "Canceled"
	KindUnknown           = "UnknownError"
)

var kinds = []struct {
	err  error
	name string
}{
	{capture.ErrSourceNotFound, KindSourceNotFound},
	{capture.ErrCameraUnavailable, KindCameraUnavailable},
	{capture.ErrFrameRead, KindFrameRead},
	{detector.ErrModelLoad, KindModelLoad},
	{detector.ErrInference, KindInference},
	{sink.ErrWrite, KindWrite},
	{config.ErrInvalid, KindConfig},
	{context.Canceled, KindCanceled},
}

// Kind maps err to its taxonomy name, or "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return KindUnknown
}
