package app

import (
	"gocv.io/x/gocv"
)

// Display presents annotated frames and reads single key presses.
type Display interface {
	Show(frame gocv.Mat)
	// WaitKey waits up to delayMs for a key (0 waits forever) and returns
	// its code, or -1 when none was pressed.
	WaitKey(delayMs int) int
	Close() error
}

// Window is a Display backed by an OpenCV HighGUI window.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a window titled name.
func NewWindow(name string) *Window {
	if name == "" {
		name = defaultDisplayName
	}
	return &Window{window: gocv.NewWindow(name)}
}

// Show draws frame in the window.
func (w *Window) Show(frame gocv.Mat) {
	w.window.IMShow(frame)
}

// WaitKey polls the window's event loop.
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}

// keyMatches compares a polled key code against a configured character.
func keyMatches(code int, key rune) bool {
	return code >= 0 && rune(code&0xFF) == key
}
