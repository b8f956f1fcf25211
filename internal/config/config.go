package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"motioncam/internal/video"
)

// Resolution presets, 16:9 except 480p.
var dimensions = map[string][2]int{
	"360p":  {480, 360},
	"480p":  {640, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"4k":    {3840, 2160},
}

// validFPS is the enumerated set of capture rates the recorder accepts.
var validFPS = map[int]bool{5: true, 10: true, 30: true, 60: true}

// Config is the full configuration surface of the recorder. It is
// immutable once capture starts.
type Config struct {
	// Duration keeps recording for this many seconds after motion is
	// detected.
	Duration int `yaml:"duration"`
	// FPS is the frame rate for both capture and video write.
	FPS int `yaml:"fps"`
	// Resolution is a named capture preset (360p ... 4k).
	Resolution string `yaml:"resolution"`
	// Video is an optional input file; empty means live camera.
	Video string `yaml:"video"`
	// Device is the camera index used when Video is empty.
	Device int `yaml:"device"`
	// OutputDir receives one video file per run. A leading ~ expands to
	// the home directory.
	OutputDir string `yaml:"output_dir"`
	// Format is the output container (avi, mp4, mkv).
	Format string `yaml:"format"`
	// QueueSize bounds the capture queue between grabber and recorder.
	QueueSize int `yaml:"queue_size"`
	// Quiet mutes informational output.
	Quiet bool `yaml:"quiet"`
	// Verbose enables debug output. Quiet wins when both are set.
	Verbose bool `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Duration:   3,
		FPS:        10,
		Resolution: "720p",
		Device:     0,
		OutputDir:  "~/video",
		Format:     video.DefaultFormat,
		QueueSize:  10000,
	}
}

// Load reads a YAML config file over the defaults. An empty path just
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays MOTIONCAM_* environment variables, typically loaded
// from a .env file on field deployments.
func (c *Config) ApplyEnv() {
	if dir := os.Getenv("MOTIONCAM_OUTPUT_DIR"); dir != "" {
		c.OutputDir = dir
	}
	if src := os.Getenv("MOTIONCAM_VIDEO"); src != "" {
		c.Video = src
	}
	if format := os.Getenv("MOTIONCAM_FORMAT"); format != "" {
		c.Format = format
	}
}

// Validate rejects values the capture and encoding layers cannot honor.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", c.Duration)
	}
	if !validFPS[c.FPS] {
		return fmt.Errorf("fps must be one of 5, 10, 30 or 60, got %d", c.FPS)
	}
	if _, ok := dimensions[c.Resolution]; !ok {
		return fmt.Errorf("unknown resolution preset %q", c.Resolution)
	}
	if !video.SupportedFormat(c.Format) {
		return fmt.Errorf("unsupported output format %q", c.Format)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}

// Dimensions returns the pixel width and height of the configured
// resolution preset.
func (c *Config) Dimensions() (int, int) {
	d := dimensions[c.Resolution]
	return d[0], d[1]
}

// ResolvedOutputDir expands a leading ~ in OutputDir.
func (c *Config) ResolvedOutputDir() (string, error) {
	if c.OutputDir == "~" || strings.HasPrefix(c.OutputDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(c.OutputDir, "~")), nil
	}
	return c.OutputDir, nil
}
