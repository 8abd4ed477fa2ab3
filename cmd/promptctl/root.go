package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/backend"
	"github.com/Clark-Hu/prompt-library/internal/config"
	"github.com/Clark-Hu/prompt-library/internal/logger"
	"github.com/Clark-Hu/prompt-library/internal/repository"
)

// app holds what every subcommand needs once the root pre-run has opened
// storage. The caller releases it with close.
type app struct {
	logLevel string
	scope    string

	logger  *zap.Logger
	store   *repository.PromptStore
	closers []func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "promptctl",
		Short: "Manage a local prompt library",
		Long: `promptctl stores, rates and removes reusable prompts.

Storage is selected by the same configuration as the server:
STORAGE_BACKEND, STORAGE_FILE, REDIS_ADDR, SQLITE_PATH, DB_URL, NATS_URL,
or the YAML file named by PROMPTLIB_CONFIG.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")
	root.PersistentFlags().StringVar(&a.scope, "scope", "", "storage scope (profile); overrides PROMPTLIB_SCOPE")

	root.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newShowCmd(a),
		newRateCmd(a),
		newDeleteCmd(a),
		newWhoamiCmd(a),
		newImportCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.scope != "" {
		cfg.Scope = a.scope
	}

	zl, syncLogs, err := logger.New(logger.Config{Level: a.logLevel, Console: os.Stderr})
	if err != nil {
		return err
	}
	a.logger = zl
	a.closers = append(a.closers, syncLogs)

	storage, closeStorage, err := backend.Open(cmd.Context(), cfg, zl)
	a.closers = append(a.closers, closeStorage)
	if err != nil {
		return err
	}

	a.store = repository.New(storage, nil, repository.Options{Scope: cfg.Scope, Logger: zl})
	a.store.Load(cmd.Context())
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
