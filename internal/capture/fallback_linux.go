package capture

import "gocv.io/x/gocv"

// Video4Linux2
const (
	fallbackAPI     = gocv.VideoCaptureAPI(200)
	fallbackAPIName = "v4l2"
)
