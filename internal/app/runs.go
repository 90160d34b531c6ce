package app

import (
	"github.com/ayusman/detecta/internal/stats"
	"github.com/ayusman/detecta/internal/store"
)

// beginRun inserts a run row. Store failures are logged and never end the
// run; a nil result means nothing is recorded.
func (a *App) beginRun(mode store.Mode, source string) *store.Run {
	if a.config.Store == nil {
		return nil
	}
	run := &store.Run{
		Mode:      mode,
		Source:    source,
		Model:     a.config.Model,
		Threshold: a.config.Pipeline.Policy.Threshold,
		StartedAt: a.config.Clock(),
	}
	if err := a.config.Store.Runs().Create(run); err != nil {
		a.logger.Warnw("run not recorded", "error", err)
		return nil
	}
	return run
}

func (a *App) finishRun(run *store.Run, counters *stats.Run, state string, runErr error) {
	if run == nil {
		return
	}
	run.State = state
	run.Frames = counters.FramesProcessed
	run.Detections = counters.TotalDetections
	run.Failures = counters.Failures
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := a.config.Store.Runs().Finish(run); err != nil {
		a.logger.Warnw("run not finished", "run", run.ID, "error", err)
	}
}

func (a *App) recordArtifact(run *store.Run, source string, res *Result, itemErr error) {
	if run == nil {
		return
	}
	artifact := &store.Artifact{RunID: run.ID, Source: source}
	if res != nil {
		artifact.OutputPath = res.OutputPath
		artifact.Detections = res.Detections
	}
	if itemErr != nil {
		artifact.ErrorKind = Kind(itemErr)
	}
	if err := a.config.Store.Artifacts().Create(artifact); err != nil {
		a.logger.Warnw("artifact not recorded", "source", source, "error", err)
	}
}
