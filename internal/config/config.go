// Package config defines the Curator configuration, its defaults, and
// validation. Configuration is read through viper from a YAML file plus
// CURATOR_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete Curator configuration.
type Config struct {
	Operator OperatorConfig `mapstructure:"operator"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Keyboard KeyboardConfig `mapstructure:"keyboard"`
	Source   SourceConfig   `mapstructure:"source"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OperatorConfig identifies the single permitted operator.
type OperatorConfig struct {
	// ID is the only identity allowed to interact with the labeler.
	ID int64 `mapstructure:"id"`
}

// PathsConfig locates the labeler's directories.
type PathsConfig struct {
	// InputDir is the base directory whose subdirectories are offered as
	// item sources when configuring a session.
	InputDir string `mapstructure:"input_dir"`
	// DataDir holds the session and draft collections and, for the sqlite
	// backend, the database file.
	DataDir string `mapstructure:"data_dir"`
}

// StorageConfig selects the collection-store backend.
type StorageConfig struct {
	// Backend is "file" (one JSON file per record) or "sqlite".
	Backend string `mapstructure:"backend"`
	// Path overrides the sqlite database location. Empty means
	// <data_dir>/curator.db.
	Path string `mapstructure:"path"`
}

// KeyboardConfig controls the option-button layout on item messages.
type KeyboardConfig struct {
	// Rows is the number of option rows per keyboard page.
	Rows int `mapstructure:"rows"`
	// Cols is the number of option buttons per row.
	Cols int `mapstructure:"cols"`
}

// SourceConfig controls item source behavior.
type SourceConfig struct {
	// Watch posts items dropped into an active session's directory
	// immediately instead of waiting for the next interaction.
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Dir is where the log file is written. Empty means <data_dir>/logs.
	Dir string `mapstructure:"dir"`
}

// Backend values for StorageConfig.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir: "input_data",
			DataDir:  ".curator",
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		Keyboard: KeyboardConfig{
			Rows: 3,
			Cols: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers the default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("operator.id", defaults.Operator.ID)

	viper.SetDefault("paths.input_dir", defaults.Paths.InputDir)
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)

	viper.SetDefault("storage.backend", defaults.Storage.Backend)
	viper.SetDefault("storage.path", defaults.Storage.Path)

	viper.SetDefault("keyboard.rows", defaults.Keyboard.Rows)
	viper.SetDefault("keyboard.cols", defaults.Keyboard.Cols)

	viper.SetDefault("source.watch", defaults.Source.Watch)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// StoragePath returns the effective sqlite database location.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.Paths.DataDir, "curator.db")
}

// LogDir returns the effective log directory.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(c.Paths.DataDir, "logs")
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "curator")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".curator"
	}
	return filepath.Join(home, ".config", "curator")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBackends returns the list of valid storage backend values.
func ValidBackends() []string {
	return []string{BackendFile, BackendSQLite}
}

// IsValidBackend checks if the given backend value is valid.
func IsValidBackend(backend string) bool {
	for _, b := range ValidBackends() {
		if strings.EqualFold(backend, b) {
			return true
		}
	}
	return false
}
