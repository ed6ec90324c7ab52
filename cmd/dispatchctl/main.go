package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shieldforce/guard-dispatch/internal/app"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI holds what every command needs. The engine is opened lazily so
// commands like token and secret work without a database.
type CLI struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context

	db     *database.PostgresDB
	queue  *queue.RedisQueue
	engine *app.Engine
}

var (
	verbose bool
	timeout time.Duration
	cli     *CLI
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Operate the guard dispatch engine",
		Long:          `Run sweeps, auto-assignment and replacement searches against the dispatch database without going through the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initCLI()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cli.close()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Deadline for the whole command")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(autoAssignCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(findReplacementCmd())
	rootCmd.AddCommand(scoreHistoryCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(secretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initCLI sets up the logger and configuration
func initCLI() error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cli = &CLI{logger: logger, ctx: context.Background()}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cli.cfg = cfg
	return nil
}

// openDB connects to Postgres once per invocation
func (c *CLI) openDB() (*database.PostgresDB, error) {
	if c.db != nil {
		return c.db, nil
	}
	db, err := database.NewConnection(c.cfg.Database)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// openEngine connects to Postgres and Redis and builds the engine
func (c *CLI) openEngine() (*app.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	db, err := c.openDB()
	if err != nil {
		return nil, err
	}
	q, err := queue.New(c.cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.queue = q
	c.engine = app.Build(c.cfg, db.DB, q, c.logger)
	return c.engine, nil
}

func (c *CLI) close() {
	if c == nil {
		return
	}
	if c.queue != nil {
		c.queue.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// commandContext bounds a command by --timeout
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(cli.ctx, timeout)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
