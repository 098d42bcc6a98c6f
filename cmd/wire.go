package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/marketwin/internal/adapters/metrics"
	summaryadapter "github.com/bnema/marketwin/internal/adapters/render/summary"
	memoryrepo "github.com/bnema/marketwin/internal/adapters/repo/memory"
	postgresrepo "github.com/bnema/marketwin/internal/adapters/repo/postgres"
	redisrepo "github.com/bnema/marketwin/internal/adapters/repo/redis"
	tomlrepo "github.com/bnema/marketwin/internal/adapters/repo/toml"
	chainstore "github.com/bnema/marketwin/internal/adapters/secrets/chain"
	filestore "github.com/bnema/marketwin/internal/adapters/secrets/file"
	passstore "github.com/bnema/marketwin/internal/adapters/secrets/pass"
	redisstore "github.com/bnema/marketwin/internal/adapters/secrets/redis"
	"github.com/bnema/marketwin/internal/adapters/workflow/n8n"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/config"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/logger"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const redisSecretPrefix = "marketwin:secret"

type app struct {
	cfg             config.Config
	log             logger.Logger
	accounts        *application.AccountService
	ledger          *application.Ledger
	evaluator       *application.Evaluator
	registry        *application.ConnectionRegistry
	adapter         *application.DispatchAdapter
	gateway         *application.Gateway
	metrics         *metrics.Metrics
	secretStore     ports.SecretStore
	summaryRenderer func([]application.PlanSummary, summaryadapter.RenderOptions) (string, error)
	httpClient      *http.Client
	now             func() time.Time
	redis           redis.UniversalClient
	closers         []func() error
}

func wireApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	period, err := cfg.Usage.BuildPeriod()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:             cfg,
		log:             logger.New(cfg.LogLevel),
		summaryRenderer: summaryadapter.Render,
		httpClient:      &http.Client{Timeout: cfg.Workflow.Timeout},
		now:             time.Now,
	}

	repo, err := a.wireRepository(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	secretStore, err := a.wireSecretStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.secretStore = secretStore

	clock := ports.SystemClock{}
	catalog := domain.DefaultPlanCatalog()

	a.metrics = metrics.New(nil)
	a.accounts = application.NewAccountService(repo, catalog, clock, period)
	a.ledger = application.NewLedger(repo, clock, period)
	a.evaluator = application.NewEvaluator(catalog, repo, a.ledger)
	a.registry = application.NewConnectionRegistry(repo, secretStore, clock)
	a.adapter = application.NewDispatchAdapter(application.WithStripHashtags(cfg.Dispatch.StripHashtags))

	executor := n8n.NewExecutor(cfg.Workflow.BaseURL,
		n8n.WithTimeout(cfg.Workflow.Timeout),
		n8n.WithSigningSecret(cfg.Workflow.SigningSecret),
	)
	a.gateway = application.NewGateway(a.evaluator, a.ledger, a.registry, a.adapter, executor,
		application.WithMetrics(a.metrics),
		application.WithLogger(a.log),
	)

	return a, nil
}

func (a *app) wireRepository(ctx context.Context) (ports.AccountRepository, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		return memoryrepo.NewRepository(), nil
	case config.DriverRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewRepository(client), nil
	case config.DriverPostgres:
		db, err := postgresrepo.Open(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("wire postgres repository: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return a.migrate(ctx, db)
	default:
		v := viper.New()
		v.Set(tomlrepo.AccountsPathKey, a.cfg.Storage.AccountsPath)
		repo, err := tomlrepo.NewRepository(v)
		if err != nil {
			return nil, fmt.Errorf("wire account repository: %w", err)
		}
		return repo, nil
	}
}

func (a *app) migrate(ctx context.Context, db *sql.DB) (ports.AccountRepository, error) {
	repo := postgresrepo.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	return repo, nil
}

func (a *app) wireSecretStore(ctx context.Context) (ports.SecretStore, error) {
	backend := a.cfg.Secrets.Backend
	if backend == config.SecretsAuto && a.cfg.Storage.Driver == config.DriverRedis {
		backend = config.SecretsRedis
	}

	switch backend {
	case config.SecretsFile:
		return filestore.NewStore(a.cfg.Secrets.Dir), nil
	case config.SecretsPass:
		return passstore.NewStore(), nil
	case config.SecretsRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client, redisSecretPrefix), nil
	default:
		store, err := chainstore.NewPassWithFileFallback(a.cfg.Secrets.Dir)
		if err != nil {
			return nil, fmt.Errorf("wire secret store chain: %w", err)
		}
		return store, nil
	}
}

// redisClient dials once and shares the client between the repository and
// the secret store.
func (a *app) redisClient(ctx context.Context) (redis.UniversalClient, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := redisrepo.Dial(ctx, a.cfg.Storage.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("wire redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
