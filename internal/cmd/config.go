package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mbaylis/curator/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View curator configuration",
	Long: `View curator configuration.

Without arguments, displays the effective configuration after defaults,
config file, and CURATOR_* environment variables are applied.`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a config file at ~/.config/curator/config.yaml with every available option.`,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("operator.id: %d\n", cfg.Operator.ID)
	fmt.Printf("paths.input_dir: %s\n", cfg.Paths.InputDir)
	fmt.Printf("paths.data_dir: %s\n", cfg.Paths.DataDir)
	fmt.Printf("storage.backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("storage.path: %s\n", cfg.StoragePath())
	fmt.Printf("keyboard.rows: %d\n", cfg.Keyboard.Rows)
	fmt.Printf("keyboard.cols: %d\n", cfg.Keyboard.Cols)
	fmt.Printf("source.watch: %t\n", cfg.Source.Watch)
	fmt.Printf("logging.level: %s\n", cfg.Logging.Level)
	fmt.Printf("logging.dir: %s\n", cfg.LogDir())
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := config.Default()
	content := fmt.Sprintf(`# Curator configuration
operator:
  # The only identity allowed to use the labeler. Must be set.
  id: 0

paths:
  # Base directory whose subdirectories are offered as item sources.
  input_dir: %s
  # Where sessions, drafts, and logs live.
  data_dir: %s

storage:
  # "file" or "sqlite".
  backend: %s
  # sqlite database location; empty means <data_dir>/curator.db.
  path: ""

keyboard:
  # Option buttons per page: rows x cols.
  rows: %d
  cols: %d

source:
  # Post items dropped into an active session's directory immediately.
  watch: false

logging:
  # debug, info, warn, or error.
  level: %s
  # Log directory; empty means <data_dir>/logs.
  dir: ""
`, defaults.Paths.InputDir, defaults.Paths.DataDir, defaults.Storage.Backend,
		defaults.Keyboard.Rows, defaults.Keyboard.Cols, defaults.Logging.Level)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}
