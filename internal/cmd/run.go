package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mbaylis/curator/internal/collection"
	"github.com/mbaylis/curator/internal/config"
	"github.com/mbaylis/curator/internal/engine"
	"github.com/mbaylis/curator/internal/logging"
	"github.com/mbaylis/curator/internal/transport"
	"github.com/mbaylis/curator/internal/tui"
	"github.com/mbaylis/curator/internal/wizard"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the labeling terminal",
	Long: `Start the labeling terminal: restores persisted sessions, opens the
operator chat, and processes labeling interactions until quit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logger.Close()

	sessions, drafts, closeStores, err := openCollections(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	recorder := transport.NewRecorder()
	manager, err := engine.NewManager(engine.ManagerOptions{
		OperatorID: cfg.Operator.ID,
		InputBase:  cfg.Paths.InputDir,
		Grid:       engine.Grid{Rows: cfg.Keyboard.Rows, Cols: cfg.Keyboard.Cols},
		Watch:      cfg.Source.Watch,
		Sessions:   sessions,
		Drafts:     drafts,
		Transport:  recorder,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	return tui.New(manager, recorder, cfg.Operator.ID).Run()
}

// openCollections opens the session and draft collections on the
// configured backend.
func openCollections(cfg *config.Config) (collection.Store[engine.SessionData], collection.Store[*wizard.Draft], func() error, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		db, err := collection.OpenDB(cfg.StoragePath())
		if err != nil {
			return nil, nil, nil, err
		}
		sessions, err := collection.NewSQLiteStore[engine.SessionData](db, "sessions")
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		drafts, err := collection.NewSQLiteStore[*wizard.Draft](db, "drafts")
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return sessions, drafts, db.Close, nil
	}

	sessions, err := collection.NewFileStore[engine.SessionData](filepath.Join(cfg.Paths.DataDir, "sessions"))
	if err != nil {
		return nil, nil, nil, err
	}
	drafts, err := collection.NewFileStore[*wizard.Draft](filepath.Join(cfg.Paths.DataDir, "drafts"))
	if err != nil {
		return nil, nil, nil, err
	}
	return sessions, drafts, func() error { return nil }, nil
}
