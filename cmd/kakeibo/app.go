package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/taxonomy"
)

const (
	readyTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

var errLoginRequired = fmt.Errorf("%w: pass --user or set KAKEIBO_USER_ID", ledger.ErrAuthRequired)

// app holds what a single command invocation opens. Everything is created
// lazily and released by close.
type app struct {
	configPath string
	userID     string

	cfg    *config.Config
	logger *log.Logger
	res    *backend.Result
	ledger *ledger.Ledger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "kakeibo",
		Short:        "Household ledger with live sync",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.userID, "user", "", "user id (default $KAKEIBO_USER_ID)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML config file (default $KAKEIBO_CONFIG)")

	root.AddCommand(
		newAddCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newSummaryCmd(a),
		newHistoryCmd(a),
		newBreakdownCmd(a),
		newCategoriesCmd(a),
		newExportCmd(a),
		newWatchCmd(a),
		newMirrorCmd(a),
	)
	return root
}

func (a *app) init() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.userID != "" {
		cfg.UserID = a.userID
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg).WithComponent(log.ComponentCLI)
	return nil
}

// open builds the configured stores once per invocation.
func (a *app) open(ctx context.Context) (*backend.Result, error) {
	if a.res != nil {
		return a.res, nil
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.res = res
	return res, nil
}

// session opens the ledger for the configured user and waits for the first
// snapshot.
func (a *app) session(ctx context.Context) (*ledger.Ledger, ledger.Snapshot, error) {
	if a.cfg.UserID == "" {
		return nil, ledger.Snapshot{}, errLoginRequired
	}
	res, err := a.open(ctx)
	if err != nil {
		return nil, ledger.Snapshot{}, err
	}
	if a.ledger == nil {
		a.ledger = ledger.New(res.Entries, a.logger, a.cfg.WriteTimeout)
		if err := a.ledger.SetUser(ctx, a.cfg.UserID); err != nil {
			return nil, ledger.Snapshot{}, err
		}
	}

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	snap, err := a.ledger.Ready(readyCtx)
	if errors.Is(err, ledger.ErrAuthRequired) {
		return nil, snap, errLoginRequired
	}
	if err != nil {
		return nil, snap, fmt.Errorf("waiting for entries: %w", err)
	}
	return a.ledger, snap, nil
}

// entries returns a snapshot of the configured user's collection.
func (a *app) entries(ctx context.Context) (ledger.Snapshot, error) {
	_, snap, err := a.session(ctx)
	return snap, err
}

func (a *app) taxonomy(ctx context.Context) (*taxonomy.Taxonomy, error) {
	res, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	tax := taxonomy.New(res.Categories, a.logger)
	if _, err := tax.Load(ctx); err != nil {
		// Defaults are in place; keep going like the ledger client does.
		a.logger.Warn("Using default categories", log.FieldError, err)
	}
	return tax, nil
}

func (a *app) close() {
	if a.ledger != nil {
		a.ledger.Close()
		a.ledger = nil
	}
	if a.res != nil {
		if err := a.res.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Failed to close backend", log.FieldError, err)
		}
		a.res = nil
	}
}

// run wraps a command body so resources are released whatever it returns.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}
