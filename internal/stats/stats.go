// Package stats accumulates per-run counters and frame-rate telemetry.
package stats

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// DefaultFPSInterval is how many frames pass between FPS recomputations.
const DefaultFPSInterval = 30

// Run holds the counters of one orchestrator run. It is not safe for
// concurrent use; only the orchestrator loop mutates it.
type Run struct {
	FramesProcessed int
	TotalDetections int
	Failures        int
	StartTime       time.Time

	now func() time.Time
}

// NewRunWithClock starts a run using now as its time source. A nil now
// uses time.Now.
func NewRunWithClock(now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{StartTime: now(), now: now}
}

// Record counts one processed frame and its detections.
func (r *Run) Record(detections int) {
	r.FramesProcessed++
	r.TotalDetections += detections
}

// RecordFailure counts one attempted frame that produced no result.
func (r *Run) RecordFailure() {
	r.FramesProcessed++
	r.Failures++
}

// Succeeded returns the number of frames that did not fail.
func (r *Run) Succeeded() int {
	return r.FramesProcessed - r.Failures
}

// Elapsed returns the wall-clock time since the run started.
func (r *Run) Elapsed() time.Duration {
	if r.now == nil {
		return time.Since(r.StartTime)
	}
	return r.now().Sub(r.StartTime)
}

// AverageFPS returns processed frames per elapsed second, or 0 before any
// time has passed.
func (r *Run) AverageFPS() float64 {
	secs := r.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.FramesProcessed) / secs
}

// Summary renders the run counters as a two-column table.
func (r *Run) Summary(title string) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Frames processed", r.FramesProcessed},
		{"Succeeded", fmt.Sprintf("%d/%d", r.Succeeded(), r.FramesProcessed)},
		{"Detections", r.TotalDetections},
		{"Elapsed", r.Elapsed().Round(time.Millisecond).String()},
		{"Average FPS", fmt.Sprintf("%.1f", r.AverageFPS())},
	})
	return t.Render()
}

// FPSMeter recomputes the run's cumulative average FPS every Interval
// frames and keeps the latest value for drawing on the frames in between.
type FPSMeter struct {
	interval int
	frames   int
	value    float64
	ready    bool
}

// NewFPSMeter returns a meter that updates every interval frames. Values
// <= 0 use DefaultFPSInterval.
func NewFPSMeter(interval int) *FPSMeter {
	if interval <= 0 {
		interval = DefaultFPSInterval
	}
	return &FPSMeter{interval: interval}
}

// Tick counts one frame. It returns the value to display and whether there
// is one yet; nothing is shown before the first interval completes.
func (m *FPSMeter) Tick(run *Run) (float64, bool) {
	m.frames++
	if m.frames%m.interval == 0 {
		m.value = run.AverageFPS()
		m.ready = true
	}
	return m.value, m.ready
}

// Interval returns the number of frames between updates.
func (m *FPSMeter) Interval() int {
	return m.interval
}
