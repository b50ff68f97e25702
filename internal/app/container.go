package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	notificationSubscribers "github.com/felixgeelhaar/cohort/internal/notification/application/subscribers"
	notificationInfra "github.com/felixgeelhaar/cohort/internal/notification/infrastructure"
	schedulingCommands "github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
	schedulingQueries "github.com/felixgeelhaar/cohort/internal/scheduling/application/queries"
	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	schedulingSubscribers "github.com/felixgeelhaar/cohort/internal/scheduling/application/subscribers"
	schedulingDomain "github.com/felixgeelhaar/cohort/internal/scheduling/domain"
	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/locking"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/outbox"
	waitlistCommands "github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
	waitlistQueries "github.com/felixgeelhaar/cohort/internal/waitlist/application/queries"
	waitlistServices "github.com/felixgeelhaar/cohort/internal/waitlist/application/services"
	waitlistSubscribers "github.com/felixgeelhaar/cohort/internal/waitlist/application/subscribers"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/workers"
	"github.com/felixgeelhaar/cohort/internal/waitlist/infrastructure/sessions"
	"github.com/felixgeelhaar/cohort/pkg/config"
	"github.com/felixgeelhaar/cohort/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	DBConn      database.Connection
	RedisClient *redis.Client
	Repos       Repositories
	Locker      schedulingServices.KeyedLocker
	UnitOfWork  sharedApplication.UnitOfWork
	Metrics     *observability.PrometheusMetrics
	Health      *observability.HealthRegistry

	// Events. Bus is nil when events travel over RabbitMQ.
	Events          sharedApplication.EventDispatcher
	Bus             *eventbus.InProcessEventBus
	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	// Scheduling services
	Ledger    *schedulingServices.Ledger
	Registry  *schedulingServices.Registry
	Sessions  *schedulingServices.SessionService
	Detector  *schedulingServices.ConflictDetector
	Engine    *schedulingServices.OptimizationEngine
	Resolver  *schedulingServices.ConflictResolver
	Audit     *schedulingServices.ConflictAudit
	Waitlists *waitlistServices.Manager

	// Scheduling handlers
	ScheduleSessionHandler   *schedulingCommands.ScheduleSessionHandler
	RescheduleSessionHandler *schedulingCommands.RescheduleSessionHandler
	CancelSessionHandler     *schedulingCommands.CancelSessionHandler
	AllocateResourceHandler  *schedulingCommands.AllocateResourceHandler
	ReleaseAllocationHandler *schedulingCommands.ReleaseAllocationHandler
	ResolveConflictHandler   *schedulingCommands.ResolveConflictHandler
	DetectConflictsHandler   *schedulingQueries.DetectConflictsHandler
	ListConflictsHandler     *schedulingQueries.ListConflictsHandler
	UtilizationReportHandler *schedulingQueries.UtilizationReportHandler

	// Waitlist handlers
	AddToWaitlistHandler     *waitlistCommands.AddToWaitlistHandler
	EnrollParticipantHandler *waitlistCommands.EnrollParticipantHandler
	CancelEnrollmentHandler  *waitlistCommands.CancelEnrollmentHandler
	EntryHandler             *waitlistCommands.EntryHandler
	ProcessWaitlistsHandler  *waitlistCommands.ProcessWaitlistsHandler
	GetWaitlistHandler       *waitlistQueries.GetWaitlistHandler

	// Workers and subscribers
	ReconciliationWorker   *workers.ReconciliationWorker
	CalendarSubscriber     *schedulingSubscribers.CalendarSubscriber
	NotificationSubscriber *notificationSubscribers.NotificationSubscriber
	CapacitySubscriber     *waitlistSubscribers.CapacitySubscriber
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := c.initLocker(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initServices(); err != nil {
		c.Close()
		return nil, err
	}
	c.initSubscribers()

	logger.Info("container ready",
		"storage", cfg.StorageDriver,
		"locks", cfg.LockBackend,
		"events", cfg.EventBus,
	)
	return c, nil
}

// NewMemoryContainer wires a container on in-memory stores with an
// in-process bus. It never touches the network or the filesystem. Events
// reach the bus on FlushEvents or from a started OutboxProcessor.
func NewMemoryContainer(ctx context.Context, logger *slog.Logger) (*Container, error) {
	cfg := &config.Config{
		AppEnv:                  "development",
		StorageDriver:           config.StorageMemory,
		LockBackend:             config.LockMemory,
		EventBus:                config.BusInProcess,
		MinBreak:                schedulingServices.DefaultMinBreak,
		FallbackDays:            7,
		BusinessHoursStart:      "09:00",
		BusinessHoursEnd:        "17:00",
		ReconcileInterval:       workers.DefaultReconcileInterval,
		OutboxBatchSize:         100,
		OutboxMaxRetries:        3,
		OutboxPollInterval:      100 * time.Millisecond,
		NotifyOpsRecipient:      notificationSubscribers.DefaultOpsRecipient,
		NotifierBreakerFailures: 5,
		NotifierBreakerTimeout:  30 * time.Second,
	}
	return NewContainer(ctx, cfg, logger)
}

func (c *Container) initStorage(ctx context.Context) error {
	cfg := c.Config
	var dbCfg database.Config
	switch cfg.StorageDriver {
	case config.StorageMemory:
		c.Repos = NewRepositoryFactory(nil).Repositories()
		c.UnitOfWork = sharedApplication.NoopUnitOfWork{}
		c.Logger.Info("using in-memory storage")
		return nil
	case config.StoragePostgres:
		dbCfg = database.Config{Driver: database.DriverPostgres, URL: cfg.DatabaseURL}
	default:
		path := cfg.SQLitePath
		if path == "" {
			path = database.DefaultSQLitePath()
		}
		if err := database.EnsureDirectory(path); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		dbCfg = database.Config{Driver: database.DriverSQLite, SQLitePath: path}
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.Run(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	factory := NewRepositoryFactory(conn)
	c.DBConn = conn
	c.Repos = factory.Repositories()
	c.UnitOfWork = factory.UnitOfWork()
	c.Health.Register("database", observability.PingChecker("database", true, conn.Ping))
	c.Logger.Info("connected to database", "driver", conn.Driver())
	return nil
}

func (c *Container) initLocker(ctx context.Context) error {
	cfg := c.Config
	if cfg.LockBackend != config.LockRedis {
		c.Locker = schedulingServices.NewMemoryLocker()
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		if !cfg.IsDevelopment() {
			client.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		// A single developer process is safe on the in-process locker.
		c.Logger.Warn("Redis not available, using in-memory locks", "error", err)
		client.Close()
		c.Locker = schedulingServices.NewMemoryLocker()
		return nil
	}

	c.RedisClient = client
	c.Locker = locking.NewRedisLocker(client, locking.Config{TTL: cfg.LockTTL}, c.Logger)
	c.Health.Register("redis", observability.PingChecker("redis", true, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initEvents() error {
	cfg := c.Config
	switch cfg.EventBus {
	case config.BusRabbitMQ:
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		} else {
			c.EventPublisher = publisher
		}
	default:
		c.Bus = eventbus.NewInProcessEventBus(c.Logger)
		c.EventPublisher = c.Bus
	}

	if c.Repos.Outbox == nil {
		c.Events = eventbus.NewDispatcher(c.EventPublisher)
		return nil
	}

	// Events are written next to the state change and relayed later, so a
	// subscriber never runs under the session lock of the command.
	c.Events = outbox.NewDispatcher(c.Repos.Outbox)
	c.OutboxProcessor = outbox.NewProcessor(c.Repos.Outbox, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
	}, c.Logger)
	return nil
}

func (c *Container) initServices() error {
	cfg := c.Config
	engineCfg := schedulingServices.DefaultEngineConfig()
	if cfg.MinBreak > 0 {
		engineCfg.MinBreak = cfg.MinBreak
	}
	if cfg.FallbackDays > 0 {
		engineCfg.FallbackDays = cfg.FallbackDays
	}
	if cfg.BusinessHoursStart != "" {
		start, err := schedulingDomain.ParseTimeOfDay(cfg.BusinessHoursStart)
		if err != nil {
			return fmt.Errorf("invalid business hours start: %w", err)
		}
		engineCfg.BusinessStart = start
	}
	if cfg.BusinessHoursEnd != "" {
		end, err := schedulingDomain.ParseTimeOfDay(cfg.BusinessHoursEnd)
		if err != nil {
			return fmt.Errorf("invalid business hours end: %w", err)
		}
		engineCfg.BusinessEnd = end
	}
	if engineCfg.BusinessStart >= engineCfg.BusinessEnd {
		return errors.New("business hours must start before they end")
	}

	deps := schedulingServices.Deps{
		Repos:  c.Repos.Scheduling,
		Locker: c.Locker,
		UoW:    c.UnitOfWork,
		Events: c.Events,
		Logger: c.Logger,
	}
	c.Ledger = schedulingServices.NewLedger(deps)
	c.Registry = schedulingServices.NewRegistry(deps)
	c.Sessions = schedulingServices.NewSessionService(deps, c.Ledger)
	c.Detector = schedulingServices.NewConflictDetector(deps, schedulingServices.DetectorConfig{MinBreak: engineCfg.MinBreak})
	c.Engine = schedulingServices.NewOptimizationEngine(deps, c.Ledger, c.Detector, engineCfg)
	c.Resolver = schedulingServices.NewConflictResolver(deps, c.Ledger, c.Engine, c.Sessions, c.Detector, c.Repos.Conflicts)
	c.Audit = schedulingServices.NewConflictAudit(deps, c.Detector, c.Repos.Conflicts)

	c.ScheduleSessionHandler = schedulingCommands.NewScheduleSessionHandler(c.Engine, c.Logger)
	c.RescheduleSessionHandler = schedulingCommands.NewRescheduleSessionHandler(c.Engine)
	c.CancelSessionHandler = schedulingCommands.NewCancelSessionHandler(c.Sessions)
	c.AllocateResourceHandler = schedulingCommands.NewAllocateResourceHandler(c.Ledger)
	c.ReleaseAllocationHandler = schedulingCommands.NewReleaseAllocationHandler(c.Ledger)
	c.ResolveConflictHandler = schedulingCommands.NewResolveConflictHandler(c.Resolver)
	c.DetectConflictsHandler = schedulingQueries.NewDetectConflictsHandler(c.Repos.Scheduling.Sessions, c.Detector, c.Repos.Conflicts)
	c.ListConflictsHandler = schedulingQueries.NewListConflictsHandler(c.Repos.Conflicts)
	c.UtilizationReportHandler = schedulingQueries.NewUtilizationReportHandler(c.Ledger)

	c.Waitlists = waitlistServices.NewManager(waitlistServices.Deps{
		Rosters:  c.Repos.Rosters,
		Sessions: sessions.NewDirectory(c.Sessions, c.Ledger, c.Registry),
		Locker:   c.Locker,
		UoW:      c.UnitOfWork,
		Events:   c.Events,
		Logger:   c.Logger,
	})
	c.AddToWaitlistHandler = waitlistCommands.NewAddToWaitlistHandler(c.Waitlists)
	c.EnrollParticipantHandler = waitlistCommands.NewEnrollParticipantHandler(c.Waitlists)
	c.CancelEnrollmentHandler = waitlistCommands.NewCancelEnrollmentHandler(c.Waitlists)
	c.EntryHandler = waitlistCommands.NewEntryHandler(c.Waitlists)
	c.ProcessWaitlistsHandler = waitlistCommands.NewProcessWaitlistsHandler(c.Waitlists)
	c.GetWaitlistHandler = waitlistQueries.NewGetWaitlistHandler(c.Waitlists)

	c.ReconciliationWorker = workers.NewReconciliationWorker(c.Waitlists, c.Audit, workers.ReconciliationWorkerConfig{
		Interval:   cfg.ReconcileInterval,
		RunOnStart: cfg.ReconcileOnStart,
	}, c.Logger).WithMetrics(c.Metrics)
	c.Health.Register("reconciliation", observability.RunningChecker("reconciliation", c.ReconciliationWorker.IsRunning))
	return nil
}

func (c *Container) initSubscribers() {
	cfg := c.Config
	breaker := notificationInfra.DefaultBreakerConfig()
	if cfg.NotifierBreakerFailures > 0 {
		breaker.FailureThreshold = uint32(cfg.NotifierBreakerFailures)
	}
	if cfg.NotifierBreakerTimeout > 0 {
		breaker.Timeout = cfg.NotifierBreakerTimeout
	}
	notifier := notificationInfra.NewBreakerNotifier(notificationInfra.NewLogNotifier(c.Logger), breaker, c.Logger)

	c.CalendarSubscriber = schedulingSubscribers.NewCalendarSubscriber(schedulingSubscribers.NewLogCalendarSink(c.Logger), c.Logger)
	c.NotificationSubscriber = notificationSubscribers.NewNotificationSubscriber(
		notifier,
		notificationSubscribers.NewRosterAudience(c.Repos.Rosters),
		cfg.NotifyOpsRecipient,
		c.Logger,
	)
	c.CapacitySubscriber = waitlistSubscribers.NewCapacitySubscriber(c.Waitlists, c.Logger)

	if c.Bus != nil {
		for _, consumer := range c.Consumers() {
			c.Bus.RegisterConsumer(consumer)
		}
	}
}

// Consumers returns the event subscribers to register on a bus.
func (c *Container) Consumers() []eventbus.EventConsumer {
	return []eventbus.EventConsumer{c.CalendarSubscriber, c.NotificationSubscriber, c.CapacitySubscriber}
}

// flushRounds bounds how many follow-up batches FlushEvents relays for the
// events raised by subscribers.
const flushRounds = 5

// FlushEvents relays pending outbox messages to the publisher. Short-lived
// processes call it after each command so subscribers see the events.
// Events raised by those subscribers go out in the same call.
func (c *Container) FlushEvents(ctx context.Context) error {
	if c.OutboxProcessor == nil {
		return nil
	}
	for range flushRounds {
		before := c.OutboxProcessor.GetStats().PublishedCount
		if err := c.OutboxProcessor.ProcessOnce(ctx); err != nil {
			return err
		}
		if c.OutboxProcessor.GetStats().PublishedCount == before {
			return nil
		}
	}
	return nil
}

// Close releases all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("failed to close event publisher", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("failed to close Redis", "error", err)
		}
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("failed to close database", "error", err)
		}
	}
}
