package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/drylab-ai/drylab/internal/endpoint"
)

// Config holds the drylab settings for both the gateway and the browser.
type Config struct {
	// BackendURL is the process-wide default backend for the gateway.
	BackendURL string
	// GatewayURL is where the browser and CLI reach the gateway.
	GatewayURL    string
	Listen        string
	DownloadDir   string
	ViewerCommand string
	LogLevel      string
	LogFile       string
	// UpstreamTimeout bounds gateway-to-backend calls. Zero means none.
	UpstreamTimeout time.Duration
	// PollInterval refreshes the job list in the browser. Zero disables it.
	PollInterval time.Duration
}

const (
	defaultConfigPath   = "~/.config/drylab/config.toml"
	defaultGatewayURL   = "http://127.0.0.1:3000"
	defaultListen       = "127.0.0.1:3000"
	defaultDownloadDir  = "~/Downloads/drylab"
	defaultLogLevel     = "info"
	defaultBrowseLog    = "~/.local/state/drylab/drylab.log"
	defaultPollInterval = 10 * time.Second
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BackendURL:   endpoint.DefaultBackendURL,
		GatewayURL:   defaultGatewayURL,
		Listen:       defaultListen,
		DownloadDir:  mustExpand(defaultDownloadDir),
		LogLevel:     defaultLogLevel,
		PollInterval: defaultPollInterval,
	}
}

// Load locates and parses the drylab config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		BackendURL      string `toml:"backend_url"`
		GatewayURL      string `toml:"gateway_url"`
		Listen          string `toml:"listen"`
		DownloadDir     string `toml:"download_dir"`
		ViewerCommand   string `toml:"viewer_command"`
		LogLevel        string `toml:"log_level"`
		LogFile         string `toml:"log_file"`
		UpstreamTimeout string `toml:"upstream_timeout"`
		PollInterval    string `toml:"poll_interval"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.BackendURL = orDefault(raw.BackendURL, cfg.BackendURL)
	cfg.GatewayURL = orDefault(raw.GatewayURL, cfg.GatewayURL)
	cfg.Listen = orDefault(raw.Listen, cfg.Listen)
	cfg.LogLevel = orDefault(raw.LogLevel, cfg.LogLevel)
	cfg.ViewerCommand = strings.TrimSpace(raw.ViewerCommand)
	if dir := strings.TrimSpace(raw.DownloadDir); dir != "" {
		cfg.DownloadDir = mustExpand(dir)
	}
	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}

	if cfg.UpstreamTimeout, err = parseDuration("upstream_timeout", raw.UpstreamTimeout, 0); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = parseDuration("poll_interval", raw.PollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// BrowseLogPath is where the terminal browser logs. It never logs to the
// terminal it draws on.
func (c Config) BrowseLogPath() string {
	if strings.TrimSpace(c.LogFile) != "" {
		return c.LogFile
	}
	return mustExpand(defaultBrowseLog)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: must not be negative", field)
	}
	return d, nil
}

// ExpandPath resolves "~" and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
