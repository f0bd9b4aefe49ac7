// Package cmd defines and implements the CLI commands for the glossary-harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/api"
	"github.com/JakeFAU/glossary-harvester/internal/app"
	"github.com/JakeFAU/glossary-harvester/internal/config"
	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/logging"
	"github.com/JakeFAU/glossary-harvester/internal/pipeline"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	holderKey appKeyType = "app-holder"
)

// appHolder owns the App opened for one command execution so it can be
// closed however the command ends.
type appHolder struct {
	app App
}

func (h *appHolder) close() error {
	if h == nil || h.app == nil {
		return nil
	}
	err := h.app.Close()
	h.app = nil
	return err
}

// App is the set of services the commands use. Tests may substitute their
// own implementation through newApp.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Index() glossary.IndexStore
	Archive() glossary.BlobStore
	Publisher() glossary.Publisher
	EnsureSchema(ctx context.Context) error
	Pipeline() (*pipeline.Pipeline, error)
	Reconciler(batchSize int) *pipeline.Reconciler
	ReadinessChecks() []api.ReadinessCheck
	Close() error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command and registers every subcommand.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "glossary-harvester",
		Short: "Collects IT glossary entries into a relational store and a search index.",
		Long: `glossary-harvester reconciles glossary records (term, definition, source,
variants) into a relational source of truth and a denormalized search index.
Records come from JSON Lines files, the built-in site crawlers, or the HTTP API.`,
		SilenceUsage: true,

		// Runs before every subcommand: build the services and hand them down
		// through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := cmd.Context()
			holder, ok := ctx.Value(holderKey).(*appHolder)
			if !ok || holder == nil {
				holder = &appHolder{}
				ctx = context.WithValue(ctx, holderKey, holder)
			}
			holder.app = appInstance
			cmd.SetContext(context.WithValue(ctx, appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			holder, _ := cmd.Context().Value(holderKey).(*appHolder)
			return holder.close()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env GLOSSARY_* always applies)")

	cmd.AddCommand(
		newSetupCmd(),
		newIngestCmd(),
		newCrawlCmd(),
		newServeCmd(),
		newReindexCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes root and then closes the App it opened. Cobra skips the
// post-run hooks when a command fails, so the close happens here as well.
func run(ctx context.Context, root *cobra.Command) error {
	holder := &appHolder{}
	err := root.ExecuteContext(context.WithValue(ctx, holderKey, holder))
	if cerr := holder.close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close application services: %w", cerr))
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, newRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
