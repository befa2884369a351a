package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/cliconfig"
	"github.com/bft-labs/streamworker/pkg/log"
)

const longHelp = `Feed limits, transactions, arrangements and legal entity structures into
the banking backend in batches, with a per-record audit trail.

Records are grouped into units of work, executed concurrently and persisted
after every state change. One JSON outcome line per input record is written
to stdout; logs go to stderr.`

var exampleUsage = strings.TrimSpace(`
  streamworker ingest limits --file limits.ndjson
  streamworker ingest transactions --file transactions.ndjson --buffer-size 50
  streamworker bootstrap --file legal-entity.json --compensate
  streamworker watch --inbox /var/spool/streamworker --kind limits --persistence badger --persistence-path /var/lib/streamworker
  streamworker resume --kind limits --persistence badger --persistence-path /var/lib/streamworker
  streamworker transactions latest --arrangement acc-1 --size 20
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the configuration shared by every command.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  log.Logger
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), logger: log.NewNoopLogger()}

	root := &cobra.Command{
		Use:           "streamworker",
		Short:         "Batch records into units of work and push them to the backend",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	c.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newIngestCommand(c),
		newBootstrapCommand(c),
		newWatchCommand(c),
		newResumeCommand(c),
		newTransactionsCommand(c),
	)

	if err := root.Execute(); err != nil {
		c.logger.Error("streamworker", log.Err(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) bindFlags(fs *pflag.FlagSet) {
	cfg := &c.cfg
	fs.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.streamworker/config.toml)")

	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "bearer token for the backend")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per attempt")
	fs.IntVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "HTTP retries on transport errors and 429/502/503/504")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "maximum backend requests per second (0 disables)")
	fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "request burst allowed by the rate limit")

	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "records per unit of work")
	fs.IntVar(&cfg.MaxConcurrentUnits, "max-concurrent-units", cfg.MaxConcurrentUnits, "units of work executed at once (0 = unbounded)")
	fs.IntVar(&cfg.UnitRetryAttempts, "unit-retries", cfg.UnitRetryAttempts, "re-executions of a unit after a persistence failure")

	fs.StringVar(&cfg.Persistence, "persistence", cfg.Persistence, "unit of work store: memory, file, badger, sqlite or postgres")
	fs.StringVar(&cfg.PersistencePath, "persistence-path", cfg.PersistencePath, "directory, database file or DSN for the store")
	fs.BoolVar(&cfg.Compensate, "compensate", cfg.Compensate, "undo completed saga steps when a later step fails")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics and /healthz on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
}

// load applies file, then env, then flags, and validates the result.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	// STREAMWORKER_* override the file but not explicit flags.
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = c.cfg.NewLogger(os.Stderr)
	c.logger.Debug("configuration", log.Any("config", c.cfg.Redacted()))
	return nil
}

// run builds the App, serves metrics if configured and calls fn under a
// context canceled on SIGINT or SIGTERM.
func (c *cli) run(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("close store", log.Err(err))
		}
	}()

	lc := a.Lifecycle()
	runCtx, err := lc.Start(ctx)
	if err != nil {
		return err
	}
	a.ServeMetrics(runCtx)

	runErr := fn(runCtx, a)
	if ctx.Err() != nil {
		c.logger.Info("received signal, stopping")
	}
	if err := lc.Stop(app.ShutdownTimeout); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
