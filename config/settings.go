package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported background removal backends.
const (
	BackendRembg   = "rembg"   // rembg HTTP server (`rembg s`)
	BackendComfyUI = "comfyui" // ComfyUI running the BiRefNet workflow
	BackendCommand = "command" // rembg CLI on PATH
)

// Settings holds the persistent defaults loaded from a config file.
type Settings struct {
	Backend   string `yaml:"backend"`
	OutputDir string `yaml:"output_dir,omitempty"`

	Rembg   RembgConfig   `yaml:"rembg"`
	ComfyUI ComfyUIConfig `yaml:"comfyui"`
	Command CommandConfig `yaml:"command"`

	Preprocess PreprocessConfig `yaml:"preprocess"`
	Watch      WatchConfig      `yaml:"watch"`
	Server     ServerConfig     `yaml:"server"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Log        LogConfig        `yaml:"log"`
}

// RembgConfig points at a rembg HTTP server.
type RembgConfig struct {
	URL          string        `yaml:"url"`
	Model        string        `yaml:"model"`
	AlphaMatting bool          `yaml:"alpha_matting"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ComfyUIConfig points at a ComfyUI instance with the BiRefNet nodes installed.
type ComfyUIConfig struct {
	URL          string        `yaml:"url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	LoadNode     string        `yaml:"load_node"`
	SaveNode     string        `yaml:"save_node"`
	Workflow     string        `yaml:"workflow,omitempty"` // API-format workflow file, embedded default when empty
}

// CommandConfig runs the rembg CLI. Args replaces the default `i -m <model> - -`.
type CommandConfig struct {
	Path  string   `yaml:"path"`
	Model string   `yaml:"model"`
	Args  []string `yaml:"args,omitempty"`
}

// PreprocessConfig controls work done around the model call.
type PreprocessConfig struct {
	MaxSize         int     `yaml:"max_size"`
	SkipTransparent bool    `yaml:"skip_transparent"`
	Trim            bool    `yaml:"trim"`
	TrimThreshold   float64 `yaml:"trim_threshold"`
	Padding         int     `yaml:"padding"`
	Square          bool    `yaml:"square"`
}

// WatchConfig controls the watch folder mode.
type WatchConfig struct {
	Schedule     string        `yaml:"schedule,omitempty"` // cron spec for a full sweep
	Poll         bool          `yaml:"poll"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	// Roots are the directories /api/jobs may read inputs from and write
	// outputs under. Empty disables /api/jobs.
	Roots []string `yaml:"roots,omitempty"`
}

// ArchiveConfig holds S3-compatible storage settings. Empty endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether processed images should be archived.
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != ""
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
}

// SlogLevel parses Level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Default returns the settings used when no config file exists.
func Default() *Settings {
	return &Settings{
		Backend: BackendRembg,
		Rembg: RembgConfig{
			URL:     "http://localhost:7000",
			Model:   "u2net",
			Timeout: 2 * time.Minute,
		},
		ComfyUI: ComfyUIConfig{
			URL:          "http://localhost:8188",
			PollInterval: time.Second,
			Timeout:      5 * time.Minute,
			LoadNode:     "1",
			SaveNode:     "3",
		},
		Command: CommandConfig{
			Path:  "rembg",
			Model: "u2net",
		},
		Preprocess: PreprocessConfig{
			TrimThreshold: 0.5,
		},
		Watch: WatchConfig{
			PollInterval: 5 * time.Second,
			Debounce:     200 * time.Millisecond,
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:8080",
			MaxUploadMB: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bgeraser.yml"
	}
	return filepath.Join(dir, "bgeraser", "config.yml")
}

// LoadSettings reads a YAML config file on top of Default.
// If the file does not exist, it returns the defaults and nil error.
func LoadSettings(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return s, nil
}

// Validate checks the settings needed by the selected backend.
func (s *Settings) Validate() error {
	switch s.Backend {
	case BackendRembg:
		if err := validateURL("rembg.url", s.Rembg.URL); err != nil {
			return err
		}
	case BackendComfyUI:
		if err := validateURL("comfyui.url", s.ComfyUI.URL); err != nil {
			return err
		}
		if s.ComfyUI.LoadNode == "" || s.ComfyUI.SaveNode == "" {
			return fmt.Errorf("comfyui.load_node and comfyui.save_node are required")
		}
	case BackendCommand:
		if strings.TrimSpace(s.Command.Path) == "" {
			return fmt.Errorf("command.path is required")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", s.Backend, BackendRembg, BackendComfyUI, BackendCommand)
	}

	if s.Preprocess.MaxSize < 0 {
		return fmt.Errorf("preprocess.max_size must not be negative")
	}
	// alpha is compared with > threshold*255, so 1 would never match
	if s.Preprocess.TrimThreshold < 0 || s.Preprocess.TrimThreshold >= 1 {
		return fmt.Errorf("preprocess.trim_threshold must be within [0, 1), got %v", s.Preprocess.TrimThreshold)
	}

	if s.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(s.Watch.Schedule); err != nil {
			return fmt.Errorf("watch.schedule: %w", err)
		}
	}

	if s.Archive.Enabled() {
		if s.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive.endpoint is set")
		}
		if s.Archive.AccessKey == "" || s.Archive.SecretKey == "" {
			return fmt.Errorf("archive credentials are required when archive.endpoint is set")
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
	return nil
}
