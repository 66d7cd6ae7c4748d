package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulsewatch/config"
	"pulsewatch/internals/metrics"
	middle "pulsewatch/internals/middleware"
	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/notify"
	"pulsewatch/internals/modules/predictor"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/scheduler"
	"pulsewatch/internals/modules/slo"
	"pulsewatch/internals/modules/status"
	"pulsewatch/internals/modules/user"
	"pulsewatch/internals/security"
	"pulsewatch/internals/store/memory"
	"pulsewatch/pkg/db"
	"pulsewatch/pkg/httpclient"
	"pulsewatch/pkg/rabbitmq"
	"pulsewatch/pkg/redisstore"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type EndpointStore interface {
	monitor.EndpointWriter
	scheduler.EndpointStore
	status.EndpointReader
}

type ResultStore interface {
	scheduler.ResultStore
	status.HistoryReader
	slo.History
	alert.History
	predictor.RecordCounter
	scheduler.HistoryPurger
}

type OwnerStore interface {
	monitor.OwnerStore
	scheduler.TierResolver
	Get(ctx context.Context, ownerID uuid.UUID) (user.Owner, error)
	Upsert(ctx context.Context, o user.Owner) error
}

type AlertStore interface {
	alert.Store
	status.AlertReader
}

// Stores groups the persistence layer, Postgres or in-memory.
type Stores struct {
	Endpoints EndpointStore
	Results   ResultStore
	Owners    OwnerStore
	Alerts    AlertStore
}

type Container struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redisstore.Client
	Rabbit   *amqp091.Connection
	Logger   *zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Stores   Stores

	Prober     *probe.Prober
	Gate       *netgate.Gate
	Engine     *alert.Engine
	Dispatcher *alert.Dispatcher
	Router     *notify.Router
	SLO        *slo.Service
	Monitors   *monitor.Service
	Tokens     *security.TokenService

	Scheduler  *scheduler.Scheduler
	Reclaimer  *scheduler.Reclaimer
	Retention  *scheduler.Retention
	Trainer    *predictor.Trainer
	Publisher  *rabbitmq.Publisher
	Consumer   *rabbitmq.Consumer
	Completion *predictor.CompletionHandler

	authMW        *middle.AuthMiddleware
	statusHandler *status.Handler
}

// NewStores opens the configured persistence layer. The pool is nil for the
// memory driver.
func NewStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Stores, *pgxpool.Pool, error) {
	if !cfg.UsesPostgres() {
		mem := memory.New()
		logger.Warn().Msg("using in-memory store, state is lost on restart")
		return Stores{Endpoints: mem.Endpoints, Results: mem.Results, Owners: mem.Owners, Alerts: mem.Alerts}, nil, nil
	}

	pool, err := db.ConnectToDB(ctx, cfg.DB, logger)
	if err != nil {
		return Stores{}, nil, err
	}
	if cfg.Store.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return Stores{}, nil, err
		}
	}
	return Stores{
		Endpoints: monitor.NewRepository(pool, logger),
		Results:   result.NewRepository(pool, logger),
		Owners:    user.NewRepository(pool, logger),
		Alerts:    alert.NewRepository(pool, logger),
	}, pool, nil
}

func NewContainer(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	stores, pool, err := NewStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Stores, c.DB = stores, pool

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if c.Metrics, err = metrics.New(c.Registry); err != nil {
		return nil, c.fail(err)
	}

	var (
		streaks alert.StreakCounter
		locker  alert.Locker
		cache   slo.Cache
		leases  scheduler.Leases
	)
	if cfg.UsesRedis() {
		if c.Redis, err = redisstore.New(ctx, cfg.Redis); err != nil {
			return nil, c.fail(err)
		}
		streaks = c.Redis
		locker = c.Redis.Locker(cfg.Redis.LockTTL)
		cache = slo.NewRedisCache(c.Redis, logger)
		leases = c.Redis
		c.Reclaimer = scheduler.NewReclaimer(c.Redis, cfg.Scheduler.ReclaimInterval, cfg.Scheduler.ReclaimLimit, logger)
		logger.Info().Msg("redis connected")
	}

	if c.Router, err = notify.FromConfig(cfg.Notify, httpclient.NewHttpClient(cfg.Notify.Timeout), logger); err != nil {
		return nil, c.fail(err)
	}
	c.Dispatcher = alert.NewDispatcher(cfg.Alert.DispatchWorkers, cfg.Alert.DispatchBuffer, cfg.Notify.Timeout*time.Duration(cfg.Notify.Attempts+1), c.Router, stores.Alerts, logger)
	c.Dispatcher.OnDelivery(func(n alert.Notification, d alert.Delivery) {
		c.Metrics.ObserveDelivery(d.Channel, string(n.Event), d.OK)
	})

	c.Engine = alert.NewEngine(stores.Alerts, streaks, locker, stores.Results, c.Dispatcher, alert.Options{
		FailureThreshold:    cfg.Alert.FailureThreshold,
		RecoveryThreshold:   cfg.Alert.RecoveryThreshold,
		Cooldown:            cfg.Alert.Cooldown,
		BurnRateCooldown:    cfg.Alert.BurnRateCooldown,
		PredictionThreshold: cfg.Predictor.Threshold,
	}, logger)

	c.SLO = slo.NewService(stores.Results, cache, slo.Params{TargetPct: cfg.SLO.TargetPct, WindowDays: cfg.SLO.WindowDays}, cfg.SLO.CacheTTL, logger)

	c.Prober = probe.New(probe.Options{
		Timeout:        cfg.Probe.Timeout,
		BodySnippetLen: cfg.Probe.BodySnippetLen,
		CertTimeout:    cfg.Probe.CertTimeout,
	})
	c.Gate = netgate.New(netgate.Options{
		URLs:            cfg.Network.TestURLs,
		Timeout:         cfg.Network.Timeout,
		MinDownloadMbps: cfg.Network.MinDownloadMbps,
		MaxLatencyMs:    cfg.Network.MaxLatencyMs,
	})

	var trainer scheduler.TrainingSubmitter
	if cfg.UsesRabbitMQ() {
		if err := c.connectRabbit(ctx); err != nil {
			return nil, c.fail(err)
		}
		trainer = c.Trainer
	}

	c.Scheduler = scheduler.New(scheduler.Deps{
		Endpoints: stores.Endpoints,
		Results:   stores.Results,
		Tiers:     stores.Owners,
		Prober:    c.Prober,
		Gate:      c.Gate,
		Engine:    c.Engine,
		SLO:       c.SLO,
		Trainer:   trainer,
		Leases:    leases,
		Metrics:   c.Metrics,
	}, scheduler.Options{
		Tick:          cfg.Scheduler.Tick,
		Workers:       cfg.Scheduler.Workers,
		InflightLease: cfg.Scheduler.InflightLease,
		PendingLimit:  cfg.Scheduler.PendingLimit,
	}, logger)

	if c.Retention, err = scheduler.NewRetention(stores.Results, cfg.Retention.Days, cfg.Retention.Schedule, logger); err != nil {
		return nil, c.fail(err)
	}

	c.Monitors = monitor.NewService(stores.Endpoints, stores.Owners, validator.New())

	if c.Tokens, err = security.NewTokenService(cfg.Auth); err != nil {
		return nil, c.fail(err)
	}
	c.authMW = middle.NewAuthMiddleware(c.Tokens)
	c.statusHandler = status.NewHandler(status.NewService(stores.Endpoints, stores.Results, c.SLO, stores.Alerts, logger))

	return c, nil
}

func (c *Container) connectRabbit(ctx context.Context) error {
	cfg := c.Config
	conn, err := rabbitmq.NewConnection(ctx, cfg.RabbitMQ, c.Logger)
	if err != nil {
		return err
	}
	c.Rabbit = conn
	if err := rabbitmq.SetupTopology(conn, cfg.RabbitMQ); err != nil {
		return err
	}

	if c.Publisher, err = rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.TrainRoutingKey); err != nil {
		return err
	}
	c.Trainer = predictor.NewTrainer(c.Publisher, c.Stores.Results, cfg.Predictor.TrainingInterval, cfg.Predictor.MinRecords, c.Logger)

	if cfg.Predictor.BaseURL == "" {
		c.Logger.Warn().Msg("predictor.base_url is empty, training completions will not be acted on")
		return nil
	}
	client := predictor.NewHTTPClient(cfg.Predictor.BaseURL, httpclient.NewHttpClient(cfg.Predictor.Timeout))
	c.Completion = predictor.NewCompletionHandler(client, &predictionObserver{endpoints: c.Stores.Endpoints, engine: c.Engine, metrics: c.Metrics, logger: c.Logger}, c.Logger)

	c.Consumer, err = rabbitmq.NewConsumer(conn, cfg.RabbitMQ.DoneQueue, cfg.RabbitMQ.ConsumerWorkers, cfg.RabbitMQ.Prefetch, c.Logger)
	return err
}

// Start launches every background worker.
func (c *Container) Start(ctx context.Context) {
	c.Dispatcher.Start()
	c.Scheduler.Start(ctx)
	c.Retention.Start()
	if c.Reclaimer != nil {
		go c.Reclaimer.Run(ctx)
	}
	if c.Consumer != nil && c.Completion != nil {
		StartConsumer(ctx, c)
	}
}

// Shutdown stops producers before consumers: scheduler first so no new
// alerts are raised, then the dispatcher drains.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.Consumer != nil {
		if err := c.Consumer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("consumer: %w", err))
		}
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Retention != nil {
		c.Retention.Stop()
	}
	if c.Dispatcher != nil {
		c.Dispatcher.Close()
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	errs = append(errs, c.closeInfra()...)
	return errors.Join(errs...)
}

func (c *Container) closeInfra() []error {
	var errs []error
	if c.Rabbit != nil && !c.Rabbit.IsClosed() {
		if err := c.Rabbit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return errs
}

// fail releases whatever was opened before a constructor error.
func (c *Container) fail(err error) error {
	if cerr := errors.Join(c.closeInfra()...); cerr != nil {
		c.Logger.Warn().Err(cerr).Msg("cleanup after failed start")
	}
	return err
}
