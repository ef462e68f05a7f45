package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/pipeline"
	"github.com/sitepipe/sitepipe/internal/task"
)

// shutdownTimeout bounds how long background services get to stop.
const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks by name",
	Long: `Run one or more tasks together with their dependencies. Tasks reached
through several paths run once.

Examples:
  sitepipe run clean              # Delete dist/ and deploy/
  sitepipe run compile-sass       # Clean, then compile stylesheets
  sitepipe run deploy-folder      # Assemble deploy/ without serving it
  sitepipe run upload             # Assemble deploy/ and publish it over FTP`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, args...)
	},
	ValidArgsFunction: completeTasks,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// loadConfig loads the configuration and applies flags that have no
// configuration key of their own.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if noOpen, err := cmd.Flags().GetBool("no-open"); err == nil && noOpen {
		cfg.Server.Open = false
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

func newPipeline(cmd *cobra.Command, session *task.Session) (*pipeline.Pipeline, logging.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	root, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(root, cfg, session, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up tasks: %w", err)
	}
	return p, logger, nil
}

// runTasks runs names and, when they leave servers or watchers behind,
// blocks until SIGINT or SIGTERM.
func runTasks(cmd *cobra.Command, names ...string) error {
	session := task.NewSession()
	p, logger, err := newPipeline(cmd, session)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := validateTaskNames(p.Runner(), names); err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := p.Run(ctx, names...)
	if p.Errors().HasErrors() {
		fmt.Fprintln(cmd.ErrOrStderr(), p.Errors().Summary())
	}
	if runErr == nil && session.HasBackground() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")
		runErr = session.Wait(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := session.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, err, "Error during shutdown")
	}
	return runErr
}
