//go:build !darwin && !linux && !windows

package capture

import "gocv.io/x/gocv"

const (
	fallbackAPI     = gocv.VideoCaptureAny
	fallbackAPIName = "any"
)
