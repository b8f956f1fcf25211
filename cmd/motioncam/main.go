package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"motioncam/internal/capture"
	"motioncam/internal/config"
	"motioncam/internal/frame"
	"motioncam/internal/motion"
	"motioncam/internal/record"
	"motioncam/internal/video"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "motioncam: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		duration   = flag.Int("duration", 3, "keep recording for this many seconds after motion is detected")
		fps        = flag.Int("fps", 10, "frame rate for capture and video write (5, 10, 30 or 60)")
		resolution = flag.String("resolution", "720p", "capture resolution preset (360p, 480p, 720p, 1080p, 4k)")
		videoPath  = flag.String("video", "", "record from a video file instead of the camera")
		device     = flag.Int("device", 0, "camera device index")
		outputDir  = flag.String("output-dir", "~/video", "directory receiving the recordings")
		format     = flag.String("format", video.DefaultFormat, "output container (avi, mp4, mkv)")
		queueSize  = flag.Int("queue-size", 10000, "capture queue capacity in frames")
		quiet      = flag.Bool("quiet", false, "mute informational output")
		verbose    = flag.Bool("verbose", false, "enable debug output")
	)
	flag.Parse()

	// Precedence: defaults < config file < environment < flags.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	_ = godotenv.Load()
	cfg.ApplyEnv()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "duration":
			cfg.Duration = *duration
		case "fps":
			cfg.FPS = *fps
		case "resolution":
			cfg.Resolution = *resolution
		case "video":
			cfg.Video = *videoPath
		case "device":
			cfg.Device = *device
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "format":
			cfg.Format = *format
		case "queue-size":
			cfg.QueueSize = *queueSize
		case "quiet":
			cfg.Quiet = *quiet
		case "verbose":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogger(cfg)

	stream, err := openStream(cfg)
	if err != nil {
		return err
	}

	effectiveFPS := stream.Fps()
	if effectiveFPS <= 0 {
		if cfg.Video != "" {
			stream.Close()
			return errors.New("unable to get video frame rate")
		}
		// Some camera drivers report no rate; fall back to the requested
		// one so the output timing stays plausible.
		effectiveFPS = float64(cfg.FPS)
	}

	outDir, err := cfg.ResolvedOutputDir()
	if err != nil {
		stream.Close()
		return err
	}
	session, err := record.NewSession(outDir, cfg.Format)
	if err != nil {
		stream.Close()
		return err
	}

	writer, err := video.NewWriter(session.Path(), effectiveFPS, stream.Width(), stream.Height())
	if err != nil {
		stream.Close()
		return err
	}

	slog.Info("starting recording",
		"session", session.ID(),
		"output", session.Path(),
		"resolution", fmt.Sprintf("%dx%d", stream.Width(), stream.Height()),
		"fps", int(effectiveFPS),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	queue := frame.NewQueue(cfg.QueueSize)
	grabber := capture.NewGrabber(stream, queue)
	controller := record.NewController(queue, motion.NewDetector(), writer, cfg.Duration, nearestFPS(effectiveFPS))

	err = runPipeline(ctx, grabber, controller)

	slog.Info("session finished",
		"session", session.ID(),
		"output", session.Path(),
		"frames_written", controller.FramesWritten(),
	)
	return err
}

// runPipeline runs both halves of the pipeline to completion. Either
// loop exiting cancels the other: a failed encoder must not leave the
// grabber blocked on a full queue, and a dead source must not leave
// the controller waiting on an empty one (the queue close sentinel
// covers the latter, cancellation the former).
func runPipeline(ctx context.Context, grabber *capture.Grabber, controller *record.Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grabber.Start(ctx)
	controller.Start(ctx)

	go func() { grabber.Wait(); cancel() }()
	go func() { controller.Wait(); cancel() }()

	return errors.Join(grabber.Wait(), controller.Wait())
}

// nearestFPS maps a source's reported rate to the whole rate used for
// the grace-window frame count; fractional rates like 29.97 must not
// truncate down.
func nearestFPS(rate float64) int {
	return int(math.Round(rate))
}

func setupLogger(cfg config.Config) {
	level := slog.LevelInfo
	switch {
	case cfg.Quiet:
		level = slog.LevelWarn
	case cfg.Verbose:
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
}

func openStream(cfg config.Config) (*video.Stream, error) {
	if cfg.Video != "" {
		return video.NewFileStream(cfg.Video)
	}
	width, height := cfg.Dimensions()
	return video.NewDeviceStream(cfg.Device, width, height, cfg.FPS)
}
