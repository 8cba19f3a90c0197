package app

import (
	"context"
	"watchtower/config"
	middle "watchtower/internals/middleware"
	"watchtower/internals/modules/alert"
	"watchtower/internals/modules/incident"
	"watchtower/internals/modules/probe"
	"watchtower/internals/modules/remedy"
	"watchtower/internals/modules/scheduler"
	"watchtower/internals/modules/target"
	"watchtower/internals/security"
	"watchtower/pkg/httpclient"
	"watchtower/pkg/rabbitmq"
	"watchtower/pkg/redisstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Container struct {
	DB              *pgxpool.Pool
	RedisClient     *redisstore.Client
	Logger          *zerolog.Logger
	Scheduler       *scheduler.Scheduler
	AlertSvc        *alert.Service
	incidentHandler *incident.Handler
	targetHandler   *target.Handler
	authMW          *middle.AuthMiddleware

	rmqConn   *amqp091.Connection
	publisher *rabbitmq.Publisher
}

// NewContainer wires the whole pipeline: targets, probes, the debouncer-backed
// scheduler, the remediation engine, the incident store and the escalation
// fan-out. Redis and RabbitMQ are optional; postgres falls back to the
// in-memory store when no url is configured (dev mode, incidents do not
// survive a restart).
func NewContainer(ctx context.Context, db *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {

	c := &Container{
		DB:     db,
		Logger: logger,
	}

	// incident store
	var repo incident.Repository
	if db != nil {
		pgRepo := incident.NewPostgresRepository(db, logger)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		repo = pgRepo
	} else {
		logger.Warn().Msg("no database configured, incidents are kept in memory only")
		repo = incident.NewMemoryRepository()
	}

	// status cache, advisory
	if cfg.Redis.URL != "" {
		redisClient, err := redisstore.New(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		c.RedisClient = redisClient
	}

	// escalation transport
	if cfg.RabbitMQ.BrokerLink != "" {
		conn, err := rabbitmq.NewConnection(&cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		if err := rabbitmq.SetupTopology(conn, &cfg.RabbitMQ); err != nil {
			conn.Close()
			return nil, err
		}
		pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQ.ExchangeName, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			conn.Close()
			return nil, err
		}
		c.rmqConn = conn
		c.publisher = pub
	} else {
		logger.Warn().Msg("no broker configured, escalations go to the log only")
	}

	var pub alert.Publisher
	if c.publisher != nil {
		pub = c.publisher
	}
	c.AlertSvc = alert.NewService(cfg.RabbitMQ.WorkerCount, cfg.RabbitMQ.PublishTimeout, pub, logger)

	incidentMgr := incident.NewManager(repo, c.AlertSvc, logger)

	// targets and probes
	registry, err := target.NewRegistry(cfg.Targets)
	if err != nil {
		return nil, err
	}

	probes := probe.NewRegistry(httpclient.NewHttpClient())
	runner := probe.NewRunner(probes, cfg.Scheduler.ProbeTimeout)

	// remediation
	actions, err := remedy.NewRegistry(&cfg.Remediation)
	if err != nil {
		return nil, err
	}
	engine := remedy.NewEngine(
		actions,
		incidentMgr,
		runner,
		cfg.Remediation.BackoffBase,
		cfg.Remediation.BackoffMax,
		cfg.Remediation.ActionTimeout,
		logger,
	)

	// restart recovery: open incidents seed their targets as failing
	open, err := incidentMgr.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	var cache scheduler.StatusCache
	if c.RedisClient != nil {
		cache = c.RedisClient
	}
	c.Scheduler = scheduler.New(registry, open, runner, incidentMgr, engine, cache, logger)

	// operator API
	tokenSvc := security.NewTokenService(&cfg.Auth)
	c.authMW = middle.NewAuthMiddleware(tokenSvc)

	var statuses target.StatusReader
	if c.RedisClient != nil {
		statuses = c.RedisClient
	}
	c.incidentHandler = incident.NewHandler(incidentMgr)
	c.targetHandler = target.NewHandler(registry, statuses)

	return c, nil
}

func (c *Container) Shutdown() error {
	c.AlertSvc.Shutdown()

	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.rmqConn != nil {
		c.rmqConn.Close()
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return nil
}
