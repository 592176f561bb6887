// Package cmd defines the CLI commands for the mira executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/app"
	"github.com/TembulatC/mira-games-backend/internal/config"
	"github.com/TembulatC/mira-games-backend/internal/logging"
	"github.com/TembulatC/mira-games-backend/internal/pipeline"
)

// App is what the commands need from the service container. Tests swap in
// a fake through newApp.
type App interface {
	Logger() *zap.Logger
	Config() config.Config
	Runner() Runner
	Handler() http.Handler
	Close() error
}

// Runner drives the ingestion pipeline.
type Runner interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context) error
}

type appKeyType string

const appKey appKeyType = "app"

type container struct {
	*app.App
}

func (c container) Runner() Runner {
	return c.Orchestrator()
}

var _ Runner = (*pipeline.Orchestrator)(nil)

// newApp is the application factory; a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return container{a}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "mira",
		Short: "Upcoming game release ingestion and catalog service.",
		Long: `mira discovers games releasing next month on the storefront, keeps a
canonical catalog of them in sync, records genre popularity snapshots, and
serves the results over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); MIRA_* env vars override it")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newOnceCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp adapts fn to a RunE that closes the app however fn returns.
func withApp(fn func(ctx context.Context, a App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			logger := appInstance.Logger()
			if err := appInstance.Close(); err != nil {
				logger.Warn("error closing application services", zap.Error(err))
			}
			_ = logger.Sync()
		}()
		return fn(cmd.Context(), appInstance)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
