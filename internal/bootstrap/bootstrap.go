// Package bootstrap assembles the service from configuration: storage,
// cache, event bus, command and query handlers. The server, the worker and
// ojtctl all start from the same App.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/application/eventhandler"
	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/internal/infrastructure/messaging"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/memory"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/postgres"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/redis"
	"github.com/solvera/ojt-core/internal/infrastructure/scheduler"
	"github.com/solvera/ojt-core/internal/infrastructure/scheduler/jobs"
	"github.com/solvera/ojt-core/internal/infrastructure/service"
	"github.com/solvera/ojt-core/internal/infrastructure/telemetry"
	"github.com/solvera/ojt-core/internal/interface/http/handlers"
	"github.com/solvera/ojt-core/pkg/circuitbreaker"
	"github.com/solvera/ojt-core/pkg/logger"
)

// App is the wired service. DB and Cache are nil when the service runs on
// in-memory repositories or without Redis.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	DB      *postgres.Connection
	Cache   *redis.Cache
	Bus     *messaging.InMemoryEventBus
	Metrics *telemetry.Metrics
	Health  *handlers.CompositeHealthChecker

	Commands *command.Handlers
	Queries  *query.Queries
	Auth     *service.Authenticator

	counters batch.CountersCache
	closers  []func()
}

// Options tunes New.
type Options struct {
	// Migrate applies pending migrations before the repositories are built.
	Migrate bool

	// SubscribeHandlers registers the event handlers on the bus. The worker
	// and ojtctl publish nothing anybody else listens to and leave it off.
	SubscribeHandlers bool

	// Metrics enables the Prometheus collectors.
	Metrics bool
}

// NewLogger builds the zap-backed logger described by o.
func NewLogger(o config.ObservabilityConfig) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(o.LogLevel),
		Format:    o.LogFormat,
		AddCaller: true,
	})
}

// New connects to the configured stores and builds every handler.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}

	if opts.Metrics {
		m, err := telemetry.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.Metrics = m
	}

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	if a.Metrics != nil {
		busCfg.Observer = a.Metrics
	}
	a.Bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, func() { _ = a.Bus.Close() })

	deps := command.Deps{
		Clock:  shared.SystemClock{},
		Events: a.Bus,
		Log:    log,
		Policy: cfg.Attendance.Policy,
	}
	if a.Metrics != nil {
		deps.Recorder = a.Metrics
	}
	qdeps := query.Deps{
		Clock:    shared.SystemClock{},
		Log:      log,
		Counters: a.counters,
	}

	var users account.Repository
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is empty, running on in-memory repositories")
		users = a.useMemory(&deps, &qdeps)
	} else {
		var err error
		if users, err = a.usePostgres(ctx, opts.Migrate, &deps, &qdeps); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Commands = command.NewHandlers(deps)
	a.Queries = query.New(qdeps)
	a.Auth = service.NewAuthenticator(users, service.NewBcryptHasher(0))

	if opts.SubscribeHandlers && cfg.Features.IsEnabled(config.FeatureEventRecompute, nil) {
		err := eventhandler.Register(a.Bus, eventhandler.Options{
			Metrics:      a.Commands.Metrics,
			Participants: deps.Participants,
			Counters:     a.counters,
			Activity:     eventhandler.DefaultActivityConfig(),
			Logger:       log,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("register event handlers: %w", err)
		}
	}
	return a, nil
}

func (a *App) openCache(ctx context.Context) error {
	rc := a.Config.Redis
	if rc.Disabled || (rc.URL == "" && rc.Host == "") {
		return nil
	}
	cfg := redis.DefaultConfig()
	cfg.URL = rc.URL
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	if rc.PoolSize > 0 {
		cfg.PoolSize = rc.PoolSize
	}

	cache, err := redis.NewCache(ctx, cfg)
	if err != nil {
		// Redis only holds counters and locks; the service runs without it.
		a.Log.Warn("redis unavailable, caching and job locks disabled", logger.Err(err))
		return nil
	}
	a.Cache = cache
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddOptionalCheck("cache", handlers.NewPingCheck(cache))

	if a.Config.Features.IsEnabled(config.FeatureCountersCache, nil) {
		breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			a.Log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
		a.counters = redis.NewCountersCache(cache, rc.CountersTTL).WithBreaker(breaker)
	}
	a.Log.Info("redis connected")
	return nil
}

func (a *App) useMemory(d *command.Deps, q *query.Deps) account.Repository {
	r := memory.New()
	d.Tx = r.Store
	d.Jobs, d.Applicants, d.Partners = r.Jobs, r.Applicants, r.Partners
	d.Batches, d.Participants, d.EventLinks = r.Batches, r.Participants, r.EventLinks
	d.Assignments, d.Submissions = r.Assignments, r.Submissions
	d.Attendance, d.Certificates = r.Attendance, r.Certificates

	q.Batches, q.Participants, q.EventLinks = r.Batches, r.Participants, r.EventLinks
	q.Assignments, q.Submissions = r.Assignments, r.Submissions
	q.Attendance, q.Certificates = r.Attendance, r.Certificates
	return r.Users
}

// dbHealth reports the pool status; *postgres.Connection implements it.
type dbHealth interface {
	Health(ctx context.Context) (*postgres.HealthStatus, error)
}

// databaseCheck fails when the database is unreachable and warns when the
// pool has no idle connection left.
func databaseCheck(db dbHealth, log *logger.Logger) handlers.HealthCheckFunc {
	return func(ctx context.Context) error {
		st, err := db.Health(ctx)
		if err != nil {
			return err
		}
		if !st.Healthy {
			return fmt.Errorf("database unreachable: %s", st.Error)
		}
		if st.MaxConns > 0 && st.AcquiredConns >= st.MaxConns {
			log.Warn("database pool exhausted",
				logger.Int("acquired", int(st.AcquiredConns)),
				logger.Int("max", int(st.MaxConns)),
			)
		}
		return nil
	}
}

func (a *App) usePostgres(ctx context.Context, migrate bool, d *command.Deps, q *query.Deps) (account.Repository, error) {
	conn, err := a.OpenDatabase(ctx)
	if err != nil {
		return nil, err
	}
	a.Health.AddCheck("database", databaseCheck(conn, a.Log))

	if migrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Log.Info("database schema is up to date", logger.Int("applied", n))
	}

	batches := postgres.NewBatchRepository(conn)
	participants := postgres.NewParticipantRepository(conn)
	eventLinks := postgres.NewEventLinkRepository(conn)
	assignments := postgres.NewAssignmentRepository(conn)
	submissions := postgres.NewSubmissionRepository(conn)
	attendanceRepo := postgres.NewAttendanceRepository(conn)
	certificates := postgres.NewCertificateRepository(conn)

	d.Tx = conn
	d.Jobs = postgres.NewJobRepository(conn)
	d.Applicants = postgres.NewApplicantRepository(conn)
	d.Partners = postgres.NewPartnerRepository(conn)
	d.Batches, d.Participants, d.EventLinks = batches, participants, eventLinks
	d.Assignments, d.Submissions = assignments, submissions
	d.Attendance, d.Certificates = attendanceRepo, certificates

	q.Batches, q.Participants, q.EventLinks = batches, participants, eventLinks
	q.Assignments, q.Submissions = assignments, submissions
	q.Attendance, q.Certificates = attendanceRepo, certificates
	return postgres.NewUserRepository(conn), nil
}

// OpenDatabase connects to PostgreSQL once and reuses the pool afterwards.
func (a *App) OpenDatabase(ctx context.Context) (*postgres.Connection, error) {
	if a.DB != nil {
		return a.DB, nil
	}
	dc := a.Config.Database
	if dc.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pc := postgres.DefaultConfig()
	pc.URL = dc.URL
	pc.MaxConns = int32(dc.MaxConns)
	pc.MinConns = int32(dc.MinConns)
	pc.MaxConnLifetime = dc.ConnMaxLifetime
	pc.MaxConnIdleTime = dc.ConnMaxIdleTime

	a.Log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, pc, a.Log)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)
	return conn, nil
}

// Scheduler builds the scheduler with every job the feature flags allow.
// Jobs are locked through Redis when it is connected.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sc := a.Config.Scheduler
	cfg := scheduler.DefaultConfig()
	cfg.Logger = a.Log
	cfg.Timezone = a.Config.App.Location
	cfg.LockTTL = sc.LockTTL
	if a.Cache != nil {
		cfg.Locker = redis.NewLocker(a.Cache)
	}
	if a.Metrics != nil {
		cfg.Observer = a.Metrics
	}
	s := scheduler.New(cfg)

	for _, j := range a.flaggedJobs() {
		var every time.Duration
		switch j.job.Name() {
		case jobs.NameAutoAbsent:
			every = sc.AutoAbsentInterval
		case jobs.NameAutoCheckout:
			every = sc.AutoCheckoutInterval
		case jobs.NameMetricsRefresh:
			every = sc.MetricsRefreshInterval
		}
		if err := s.Register(j.job, scheduler.Every(every)); err != nil {
			return nil, err
		}
		if !a.Config.Features.IsEnabled(j.feature, nil) {
			if err := s.SetEnabled(j.job.Name(), false); err != nil {
				return nil, err
			}
			a.Log.Info("job disabled by feature flag", logger.String("job", j.job.Name()))
		}
	}
	return s, nil
}

type flaggedJob struct {
	job     scheduler.Job
	feature string
}

// flaggedJobs returns the background jobs paired with the flag that gates them.
func (a *App) flaggedJobs() []flaggedJob {
	timeout := a.Config.Scheduler.JobTimeout
	return []flaggedJob{
		{jobs.NewAutoAbsentJob(a.Commands.Attendance, timeout, a.Log), config.FeatureAutoAbsent},
		{jobs.NewAutoCheckoutJob(a.Commands.Attendance, timeout, a.Log), config.FeatureAutoCheckout},
		{jobs.NewMetricsRefreshJob(a.Commands.Metrics, timeout, a.Log), config.FeatureMetricsRefresh},
	}
}

// JobNames lists the background jobs.
func (a *App) JobNames() []string {
	var names []string
	for _, j := range a.flaggedJobs() {
		names = append(names, j.job.Name())
	}
	return names
}

// Job returns the named background job.
func (a *App) Job(name string) (scheduler.Job, error) {
	for _, j := range a.flaggedJobs() {
		if j.job.Name() == name {
			return j.job, nil
		}
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
