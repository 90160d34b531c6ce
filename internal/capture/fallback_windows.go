package capture

import "gocv.io/x/gocv"

// DirectShow
const (
	fallbackAPI     = gocv.VideoCaptureAPI(700)
	fallbackAPIName = "dshow"
)
