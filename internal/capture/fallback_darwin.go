package capture

import "gocv.io/x/gocv"

// AVFoundation
const (
	fallbackAPI     = gocv.VideoCaptureAPI(1200)
	fallbackAPIName = "avfoundation"
)
