package app

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/capture"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/render"
	"github.com/ayusman/detecta/internal/sink"
	"github.com/ayusman/detecta/internal/stats"
	"github.com/ayusman/detecta/internal/store"
)

// State is a streaming run state.
type State int

// Streaming states. A run moves from Opening to Streaming and ends in one
// of the three terminal states.
const (
	StateOpening State = iota
	StateStreaming
	StateStoppedByUser
	StateStoppedAtEnd
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateStreaming:
		return "STREAMING"
	case StateStoppedByUser:
		return "STOPPED_BY_USER"
	case StateStoppedAtEnd:
		return "STOPPED_AT_END"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateStoppedByUser || s == StateStoppedAtEnd || s == StateFailed
}

// RunVideo streams a video file until it ends or the user stops it.
func (a *App) RunVideo(ctx context.Context, path string) (*stats.Run, State, error) {
	src, err := capture.OpenVideo(path)
	if err != nil {
		a.logger.Errorw("video not opened", "path", path, "kind", Kind(err), "error", err)
		return nil, StateFailed, err
	}
	a.logger.Debugw("video opened", "path", path, "frames", src.FrameCount())
	return a.RunStream(ctx, src)
}

// RunCamera probes for a camera and streams it until the user stops it or
// a read fails.
func (a *App) RunCamera(ctx context.Context) (*stats.Run, State, error) {
	cam, err := capture.OpenCamera(a.config.Camera, a.config.OpenCamera)
	if err != nil {
		a.logger.Errorw("camera not opened", "kind", Kind(err), "error", err)
		return nil, StateFailed, err
	}
	info := cam.Info()
	a.logger.Infow("camera opened",
		"index", cam.Index(),
		"api", cam.API(),
		"width", info.Width,
		"height", info.Height,
		"fps", info.FPS,
	)
	return a.RunStream(ctx, cam)
}

// RunStream drives src through the pipeline. It owns src and closes it
// exactly once before returning, whatever the terminal state.
//
// Each iteration reads a frame (io.EOF ends the run at STOPPED_AT_END, any
// other read error FAILED), runs inference (errors FAILED), filters and
// renders, refreshes the FPS overlay every FPSInterval frames, optionally
// records, presents the frame and polls one key. The cancel key or a
// canceled context stop the run at STOPPED_BY_USER; the skip key discards
// SkipFrames frames on sources that support it.
func (a *App) RunStream(ctx context.Context, src capture.Source) (counters *stats.Run, state State, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state = StateOpening
	info := src.Info()
	mode, delay := store.ModeVideo, VideoKeyDelayMs
	if info.Kind == capture.KindCamera {
		mode, delay = store.ModeCamera, CameraKeyDelayMs
	}

	counters = stats.NewRunWithClock(a.config.Clock)
	run := a.beginRun(mode, info.Name)

	var recorder *sink.Recorder
	var gate *capture.MotionGate
	if a.config.MotionGate {
		gate = capture.NewMotionGate(a.config.MotionThreshold)
	}

	defer func() {
		var releaseErr error
		if recorder != nil {
			releaseErr = multierr.Append(releaseErr, recorder.Close())
			a.logger.Infow("recording saved", "path", recorder.Path(), "frames", recorder.Frames())
		}
		if gate != nil {
			gate.Close()
		}
		releaseErr = multierr.Append(releaseErr, src.Close())
		if releaseErr != nil {
			a.logger.Warnw("release failed", "error", releaseErr)
		}
		err = multierr.Append(err, releaseErr)

		a.finishRun(run, counters, state.String(), err)
		a.logger.Infow("stream finished",
			"source", info.Name,
			"state", state.String(),
			"frames", counters.FramesProcessed,
			"detections", counters.TotalDetections,
			"avg_fps", fmt.Sprintf("%.1f", counters.AverageFPS()),
		)
		a.writeSummary(counters, fmt.Sprintf("%s %s (%s)", mode, info.Name, state))
	}()

	meter := stats.NewFPSMeter(a.config.FPSInterval)
	a.logger.Infow("stream started",
		"source", info.Name,
		"kind", info.Kind.String(),
		"width", info.Width,
		"height", info.Height,
		"fps", info.FPS,
		"fps_interval", meter.Interval(),
	)

	state = StateStreaming
	var last []detection.Detection
	inferred := false

	for !state.Terminal() {
		if ctx.Err() != nil {
			state = StateStoppedByUser
			break
		}

		frame, readErr := src.Next()
		if readErr == io.EOF {
			state = StateStoppedAtEnd
			break
		}
		if readErr != nil {
			state = StateFailed
			err = readErr
			a.logger.Errorw("frame read failed", "kind", Kind(readErr), "error", readErr)
			break
		}

		dets := last
		if open := gate == nil || a.gateOpen(gate, frame, inferred); open {
			dets, err = a.infer(frame)
			if err != nil {
				frame.Close()
				state = StateFailed
				a.logger.Errorw("inference failed", "kind", Kind(err), "error", err)
				break
			}
			last, inferred = dets, true
		}

		annotated := a.config.Renderer.Render(*frame, dets)
		frame.Close()
		counters.Record(len(dets))

		if fps, ok := meter.Tick(counters); ok {
			render.DrawFPS(&annotated, fps)
		}

		if a.config.Record {
			if recorder == nil {
				path := a.config.Sink.Naming().PathWithExt(info.Name, a.config.RecordExt)
				recorder, err = sink.NewRecorder(path, info.FPS, annotated.Cols(), annotated.Rows())
				if err != nil {
					annotated.Close()
					state = StateFailed
					a.logger.Errorw("recorder not opened", "path", path, "error", err)
					break
				}
				a.logger.Infow("recording", "path", path, "codec", recorder.Codec())
			}
			if err = recorder.Record(annotated); err != nil {
				annotated.Close()
				state = StateFailed
				a.logger.Errorw("frame not recorded", "error", err)
				break
			}
		}

		key := -1
		if d := a.config.Display; d != nil {
			d.Show(annotated)
			key = d.WaitKey(delay)
		}
		annotated.Close()

		switch {
		case keyMatches(key, a.config.CancelKey):
			state = StateStoppedByUser
		case keyMatches(key, a.config.SkipKey):
			if a.skip(src) && gate != nil {
				gate.Reset()
			}
		}
	}

	if err != nil {
		err = errors.WithMessagef(err, "%s stream %s", mode, info.Name)
	}
	return counters, state, err
}

// gateOpen reports whether inference should run on frame. Until a first
// inference there is nothing to reuse, so the gate is always open then.
func (a *App) gateOpen(gate *capture.MotionGate, frame *gocv.Mat, inferred bool) bool {
	open, changed := gate.Open(frame)
	if !inferred {
		return true
	}
	if !open {
		a.logger.Debugw("frame skipped by motion gate", "changed", changed)
	}
	return open
}

// skip jumps ahead in sources that support it and reports whether it did.
func (a *App) skip(src capture.Source) bool {
	skipper, ok := src.(capture.Skipper)
	if !ok {
		a.logger.Debugw("skip ignored", "source", src.Info().Name)
		return false
	}
	if err := skipper.Skip(a.config.SkipFrames); err != nil {
		a.logger.Warnw("skip failed", "error", err)
		return false
	}
	a.logger.Infow("skipped ahead", "frames", a.config.SkipFrames)
	return true
}
