// Package main is the detecta command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/detecta/internal/app"
	"github.com/ayusman/detecta/internal/config"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/logging"
	"github.com/ayusman/detecta/internal/sink"
	"github.com/ayusman/detecta/internal/store"
)

const (
	// Flags.
	flagModel      = "model"
	flagConfidence = "confidence"
	flagConfig     = "config"
	flagProfile    = "profile"
	flagHeadless   = "headless"
	flagBackend    = "backend"
	flagDebug      = "debug"
	flagBatch      = "batch"
	flagRecord     = "record"
	flagMotion     = "motion-gate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "detecta:", err)
		stop()
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:      "detecta",
		Usage:     "detect and annotate objects in images, videos and camera streams",
		ArgsUsage: "<image> [model] [confidence]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagModel,
				Aliases: []string{"m"},
				Usage:   "model `PATH`",
			},
			&cli.Float64Flag{
				Name:    flagConfidence,
				Aliases: []string{"c"},
				Usage:   "minimum confidence in [0, 1]",
			},
			&cli.StringFlag{
				Name:  flagConfig,
				Usage: "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagProfile,
				Usage: "detection profile: general, traffic or cars",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "never open a window",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Usage: "detector backend: dnn, onnx or service",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:    flagBatch,
				Aliases: []string{"folder"},
				Usage:   "annotate every image in `DIR`",
			},
		},
		Action: func(c *cli.Context) error {
			if dir := c.String(flagBatch); dir != "" {
				return withApp(c, 0, func(ctx context.Context, a *app.App) error {
					_, err := a.RunBatch(ctx, dir)
					return err
				})
			}
			if c.NArg() == 0 {
				return usageError(c)
			}
			path := c.Args().First()
			return withApp(c, 1, func(ctx context.Context, a *app.App) error {
				_, err := a.RunImage(ctx, path)
				return err
			})
		},
		Commands: []*cli.Command{
			{
				Name:      "video",
				Usage:     "annotate a video file frame by frame",
				ArgsUsage: "<path>",
				Flags:     streamFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return usageError(c)
					}
					path := c.Args().First()
					return withApp(c, -1, func(ctx context.Context, a *app.App) error {
						_, _, err := a.RunVideo(ctx, path)
						return err
					})
				},
			},
			{
				Name:    "webcam",
				Aliases: []string{"camera"},
				Usage:   "annotate the first available camera",
				Flags:   streamFlags(),
				Action: func(c *cli.Context) error {
					return withApp(c, -1, func(ctx context.Context, a *app.App) error {
						_, _, err := a.RunCamera(ctx)
						return err
					})
				},
			},
		},
	}
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  flagRecord,
			Usage: "also write the annotated stream as video",
		},
		&cli.BoolFlag{
			Name:  flagMotion,
			Usage: "skip inference on frames that barely changed",
		},
	}
}

// usageError prints the help of the command that was misused and exits
// with status 1.
func usageError(c *cli.Context) error {
	var err error
	if c.Command == nil || c.Command.Name == "" || c.Command.Name == c.App.Name {
		err = cli.ShowAppHelp(c)
	} else {
		err = cli.ShowCommandHelp(c, c.Command.Name)
	}
	if err != nil {
		return err
	}
	return cli.Exit("", 1)
}

// loadConfig layers flags and positional overrides on top of
// config.LoadProfile. argOffset is the index of the positional [model]
// argument, or -1 when the command takes none.
func loadConfig(c *cli.Context, argOffset int) (*config.Config, error) {
	cfg, err := config.LoadProfile(c.String(flagConfig), c.String(flagProfile))
	if err != nil {
		return nil, err
	}

	if v := c.String(flagModel); v != "" {
		cfg.Model.Path = v
	}
	if c.IsSet(flagConfidence) {
		cfg.Detection.Confidence = c.Float64(flagConfidence)
	}
	if v := c.String(flagBackend); v != "" {
		cfg.Model.Backend = v
	}
	if c.Bool(flagHeadless) {
		cfg.Headless = true
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}
	if c.Bool(flagRecord) {
		cfg.Stream.Record = true
	}
	if c.Bool(flagMotion) {
		cfg.Stream.MotionGate = true
	}

	if argOffset >= 0 {
		if err := applyPositional(cfg, c.Args().Slice(), argOffset); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPositional reads the optional [model] [confidence] arguments
// starting at args[offset].
func applyPositional(cfg *config.Config, args []string, offset int) error {
	if len(args) > offset {
		cfg.Model.Path = args[offset]
	}
	if len(args) > offset+1 {
		v, err := strconv.ParseFloat(args[offset+1], 64)
		if err != nil {
			return errors.Wrapf(config.ErrInvalid, "confidence %q", args[offset+1])
		}
		cfg.Detection.Confidence = v
	}
	return nil
}

// withApp wires configuration, logger, detector, store and window, runs fn
// and releases everything it opened.
func withApp(c *cli.Context, argOffset int, fn func(context.Context, *app.App) error) (err error) {
	cfg, err := loadConfig(c, argOffset)
	if err != nil {
		return err
	}

	logger, err := logging.New("detecta", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	det, err := detector.New(cfg.DetectorConfig(logger.Named("detector")))
	if err != nil {
		logger.Errorw("model not loaded", "model", cfg.Model.Path, "kind", app.Kind(err), "error", err)
		return err
	}
	defer func() {
		err = multierr.Append(err, det.Close())
	}()

	st := openStore(cfg, logger)
	if st != nil {
		defer func() {
			err = multierr.Append(err, st.Close())
		}()
	}

	renderer, err := cfg.Renderer()
	if err != nil {
		return err
	}

	appCfg := app.Config{
		Pipeline:        cfg.Pipeline(),
		Renderer:        renderer,
		Sink:            sink.New(cfg.Naming()),
		Store:           st,
		Headless:        cfg.Headless,
		Model:           cfg.Model.Path,
		CancelKey:       firstRune(cfg.Stream.CancelKey),
		SkipKey:         firstRune(cfg.Stream.SkipKey),
		SkipFrames:      cfg.Stream.SkipFrames,
		FPSInterval:     cfg.Stream.FPSInterval,
		Record:          cfg.Stream.Record,
		RecordExt:       cfg.Stream.RecordExt,
		MotionGate:      cfg.Stream.MotionGate,
		MotionThreshold: cfg.Stream.MotionThreshold,
		Camera:          cfg.CameraConfig(logger.Named("camera")),
		Summary:         os.Stdout,
		Logger:          logger,
	}
	if !cfg.Headless {
		window := app.NewWindow("detecta")
		defer func() {
			err = multierr.Append(err, window.Close())
		}()
		appCfg.Display = window
	}

	logger.Infow("detector ready",
		"model", cfg.Model.Path,
		"backend", cfg.Model.Backend,
		"profile", cfg.Detection.Profile,
		"confidence", cfg.Detection.Confidence,
		"headless", cfg.Headless,
	)
	logger.Debugw("class colors", "colors", renderer.Colors().Hex())

	return fn(c.Context, app.New(appCfg, det))
}

// openStore opens the run history. A store that cannot be opened is logged
// and skipped.
func openStore(cfg *config.Config, logger *zap.SugaredLogger) *store.Store {
	if cfg.Store.Disabled {
		return nil
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		logger.Warnw("run history disabled", "path", cfg.Store.Path, "error", err)
		return nil
	}
	return st
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
