// Package config is responsible for configuring the tracking agent
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
)

type (
	// Config holds all configuration settings.
	Config struct {
		Tracking      TrackingConfig
		Sync          SyncConfig
		Domains       DomainConfig
		Notifications NotificationConfig
		Settings      SystemConfig
	}

	// TrackingConfig holds the state machine thresholds and timer intervals.
	TrackingConfig struct {
		IdleThreshold    time.Duration `mapstructure:"idle_threshold"`
		IdlePollInterval time.Duration `mapstructure:"idle_poll_interval"`
		CheckDelayMin    time.Duration `mapstructure:"check_delay_min"`
		CheckDelayMax    time.Duration `mapstructure:"check_delay_max"`
		CheckWindow      time.Duration `mapstructure:"check_window"`
	}

	// SyncConfig holds settings for the session lifecycle service.
	SyncConfig struct {
		APIURL        string        `mapstructure:"api_url"`
		Credential    string        `mapstructure:"credential"`
		FlushInterval time.Duration `mapstructure:"flush_interval"`
		RetryInterval time.Duration `mapstructure:"retry_interval"`
	}

	// DomainConfig holds the local classification fallback lists. Overrides
	// take priority over list membership; anything unmatched is unproductive.
	DomainConfig struct {
		Overrides    map[string]string `mapstructure:"overrides"`
		Productive   []string          `mapstructure:"productive"`
		Unproductive []string          `mapstructure:"unproductive"`
	}

	// NotificationConfig holds notification settings.
	NotificationConfig struct {
		Enabled bool   `mapstructure:"enabled"`
		Chime   bool   `mapstructure:"chime"`
		Sound   string `mapstructure:"sound"`
	}

	// SystemConfig holds system-related settings.
	SystemConfig struct {
		FinishCmd string `mapstructure:"finish_cmd"`
		DarkTheme bool   `mapstructure:"dark_theme"`
	}

	// Option is a function that modifies Config.
	Option func(*Config) error
)

const Version = "v0.3.1"

var (
	configDir      = "anchor"
	configFileName = "config.yml"
	dbFileName     = "anchor.db"
	logFileName    = "anchor.log"
	eventsFileName = "events.sock"
	statusFileName = "status.json"
	dbFilePath     string
	configFilePath string
	logFilePath    string
	eventsFilePath string
	statusFilePath string
)

var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func Dir() string {
	return configDir
}

func DBFilePath() string {
	return dbFilePath
}

func LogFilePath() string {
	return logFilePath
}

func ConfigFilePath() string {
	return configFilePath
}

// EventsFilePath is where the browser extension bridge delivers activity
// events.
func EventsFilePath() string {
	return eventsFilePath
}

// StatusFilePath is where the running agent mirrors its session snapshot so
// a second process can report status without opening the database.
func StatusFilePath() string {
	return statusFilePath
}

func InitializePaths() {
	anchorEnv := strings.TrimSpace(os.Getenv("ANCHOR_ENV"))
	if anchorEnv != "" {
		configFileName = fmt.Sprintf("config_%s.yml", anchorEnv)
		dbFileName = fmt.Sprintf("anchor_%s.db", anchorEnv)
		logFileName = fmt.Sprintf("anchor_%s.log", anchorEnv)
		eventsFileName = fmt.Sprintf("events_%s.sock", anchorEnv)
		statusFileName = fmt.Sprintf("status_%s.json", anchorEnv)
	}

	var err error

	relPath := filepath.Join(configDir, configFileName)

	configFilePath, err = xdg.ConfigFile(relPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dataDir, err := xdg.DataFile(configDir)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dbFilePath = filepath.Join(dataDir, dbFileName)

	logFilePath = filepath.Join(dataDir, "log", logFileName)

	eventsFilePath = filepath.Join(xdg.RuntimeDir, configDir, eventsFileName)

	statusFilePath = filepath.Join(dataDir, statusFileName)
}

// New creates a new Config with default values and applies options.
func New(opts ...Option) (*Config, error) {
	cfg := &Config{}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("config option error: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Tracking.CheckDelayMin > c.Tracking.CheckDelayMax {
		return errCheckDelayBounds
	}

	if c.Tracking.IdleThreshold <= 0 {
		return errNonPositiveThreshold
	}

	return nil
}
