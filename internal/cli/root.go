// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/embermind/recall/config"
	"github.com/embermind/recall/engine"
)

var (
	configPath string
	dbPath     string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Tiered memory engine for conversational agents",
	Long:  "Store, score, rank, and assemble conversational memory. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $RECALL_DB or ~/.recall/recall.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("RECALL_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall", "recall.db")
}

// openEngine builds and starts an engine for one command invocation.
// The caller must Stop it.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Storage.Path = getDBPath()
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := e.Start(cmd.Context()); err != nil {
		e.Stop()
		return nil, err
	}
	return e, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
