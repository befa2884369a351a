// Package app wires configuration, persistence, the backend client and
// metrics into the task services.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bft-labs/streamworker/internal/arrangements"
	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/internal/cliconfig"
	"github.com/bft-labs/streamworker/internal/legalentity"
	"github.com/bft-labs/streamworker/internal/limits"
	"github.com/bft-labs/streamworker/internal/transactions"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/metrics"
	"github.com/bft-labs/streamworker/pkg/saga"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// App holds the process-wide dependencies.
type App struct {
	cfg       cliconfig.Config
	logger    log.Logger
	store     *Store
	backend   *backend.Client
	registry  *prometheus.Registry
	observer  *metrics.Observer
	validate  *validator.Validate
	lifecycle *Lifecycle
}

// New builds an App from a validated config.
func New(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	bcfg := backend.DefaultConfig(cfg.BackendURL)
	bcfg.Token = cfg.AuthToken
	bcfg.Timeout = cfg.HTTPTimeout
	bcfg.RetryMax = cfg.RetryMax
	bcfg.RateLimit = cfg.RateLimit
	bcfg.Burst = cfg.RateBurst
	bcfg.Logger = logger
	client, err := backend.New(bcfg)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Persistence, err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		backend:   client,
		registry:  registry,
		observer:  observer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		lifecycle: NewLifecycle(logger),
	}, nil
}

// Logger returns the process logger.
func (a *App) Logger() log.Logger { return a.logger }

// Registry returns the metrics registry.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Lifecycle returns the supervisor for background workers.
func (a *App) Lifecycle() *Lifecycle { return a.lifecycle }

// RunnerConfig maps the config onto the unit-of-work runner settings.
func (a *App) RunnerConfig() worker.RunnerConfig {
	rc := worker.DefaultRunnerConfig()
	rc.MaxConcurrentUnits = a.cfg.MaxConcurrentUnits
	rc.RetryAttempts = a.cfg.UnitRetryAttempts
	// the memory store never evicts on its own
	rc.EvictFinished = a.store.Kind() == cliconfig.PersistenceMemory
	return rc
}

// LimitsService builds the limits ingestion service.
func (a *App) LimitsService() (*limits.Service, error) {
	return limits.NewService(
		a.cfg.BufferSize,
		Repository[*limits.Task](a.store, "limits"),
		limits.NewExecutor(a.backend, a.validate, a.logger),
		a.RunnerConfig(),
		a.logger,
		worker.WithObserver(a.observer),
	)
}

// TransactionsService builds the transactions ingestion service.
func (a *App) TransactionsService() (*transactions.Service, error) {
	return transactions.NewService(
		a.cfg.BufferSize,
		Repository[*transactions.Task](a.store, "transactions"),
		transactions.NewExecutor(a.backend, a.validate, a.logger),
		a.RunnerConfig(),
		a.logger,
		worker.WithObserver(a.observer),
	)
}

// ArrangementsService builds the arrangement upsert service.
func (a *App) ArrangementsService() (*arrangements.Service, error) {
	return arrangements.NewService(
		a.cfg.BufferSize,
		Repository[*arrangements.Task](a.store, "arrangements"),
		arrangements.NewExecutor(a.backend, a.validate, a.logger),
		a.RunnerConfig(),
		a.logger,
		worker.WithObserver(a.observer),
	)
}

// TransactionQueries builds the transaction query and maintenance service.
func (a *App) TransactionQueries() *transactions.Queries {
	return transactions.NewQueries(a.backend, a.validate, a.logger)
}

// LegalEntityService builds the legal entity bootstrap service. Compensation
// is enabled by the Compensate setting.
func (a *App) LegalEntityService() (*legalentity.Service, error) {
	opts := []saga.Option{saga.WithLogger(a.logger)}
	if a.cfg.Compensate {
		opts = append(opts, saga.WithCompensation())
	}
	return legalentity.NewService(
		a.cfg.BufferSize,
		Repository[*legalentity.Task](a.store, "legal-entities"),
		legalentity.NewSaga(a.backend, a.validate, opts...),
		a.RunnerConfig(),
		a.logger,
		worker.WithObserver(a.observer),
	)
}

// ServeMetrics starts the metrics server under the lifecycle when a metrics
// address is configured.
func (a *App) ServeMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	a.lifecycle.Go(ctx, "metrics", func(ctx context.Context) error {
		return metrics.Serve(ctx, a.cfg.MetricsAddr, a.registry, a.logger)
	})
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
