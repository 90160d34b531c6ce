package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ayusman/detecta/internal/config"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/store"
)

const (
	flagLimit  = "limit"
	flagDelete = "delete"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "list recorded runs, or the artifacts of one run",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  flagLimit,
				Value: 20,
				Usage: "show at most `N` runs (0 for all)",
			},
			&cli.StringFlag{
				Name:  flagDelete,
				Usage: "delete the run with `ID` and its artifacts",
			},
		},
		Action: func(c *cli.Context) (err error) {
			cfg, err := config.LoadProfile(c.String(flagConfig), c.String(flagProfile))
			if err != nil {
				return err
			}
			if cfg.Store.Disabled {
				return errors.Wrap(config.ErrInvalid, "run history is disabled")
			}
			st, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, st.Close())
			}()
			return showHistory(c.App.Writer, st, c.Args().First(), c.String(flagDelete), c.Int(flagLimit))
		},
	}
}

// showHistory deletes a run when deleteID is set, prints one run's
// artifacts when runID is set, and lists recent runs otherwise.
func showHistory(w io.Writer, st *store.Store, runID, deleteID string, limit int) error {
	if deleteID != "" {
		if err := st.Runs().Delete(deleteID); err != nil {
			return errors.Wrapf(err, "delete run %s", deleteID)
		}
		fmt.Fprintf(w, "deleted run %s\n", deleteID)
		return nil
	}

	if runID != "" {
		run, err := st.Runs().GetByID(runID)
		if err != nil {
			return errors.Wrapf(err, "run %s", runID)
		}
		artifacts, err := st.Artifacts().ListByRun(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, renderArtifacts(run, artifacts))
		return nil
	}

	runs, err := st.Runs().List(limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, renderRuns(runs))
	return nil
}

func renderRuns(runs []*store.Run) string {
	t := table.NewWriter()
	t.SetTitle("Runs")
	t.AppendHeader(table.Row{"ID", "Started", "Mode", "Source", "State", "Frames", "Detections", "Failures"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Mode,
			r.Source,
			r.State,
			r.Frames,
			r.Detections,
			r.Failures,
		})
	}
	return t.Render()
}

func renderArtifacts(run *store.Run, artifacts []*store.Artifact) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s %s (%s, model %s)", run.Mode, run.Source, run.State, run.Model))
	t.AppendHeader(table.Row{"Source", "Output", "Classes", "Error"})
	for _, a := range artifacts {
		t.AppendRow(table.Row{a.Source, a.OutputPath, classSummary(a.Detections), a.ErrorKind})
	}
	return t.Render()
}

// classSummary formats per-class counts as "car:2 person:1".
func classSummary(dets []detection.Detection) string {
	counts := detection.Counts(dets)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}
