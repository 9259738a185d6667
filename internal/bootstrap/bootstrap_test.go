package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/postgres"
	"github.com/solvera/ojt-core/internal/infrastructure/scheduler/jobs"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

func memoryConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("REDIS_DISABLED", true)
	for k, val := range env {
		v.Set(k, val)
	}
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t, nil), logger.Nop(), Options{SubscribeHandlers: true})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Cache)
	require.NotNil(t, app.Commands)
	require.NotNil(t, app.Queries)

	res, err := app.Commands.Batches.CreateBatch(ctx, command.CreateBatchCommand{
		Name:      "Backend",
		StartDate: timeutil.Date(2026, 3, 1),
		EndDate:   timeutil.Date(2026, 4, 30),
	})
	require.NoError(t, err)

	overview, err := app.Queries.GetBatchOverview(ctx, res.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backend", overview.Batch.Name)

	status := app.Health.Check(ctx)
	assert.True(t, status.Healthy)
}

func TestScheduler_RegistersJobs(t *testing.T) {
	cfg := memoryConfig(t, map[string]string{"FEATURE_METRICS_HOURLY_REFRESH": "false"})
	app, err := New(context.Background(), cfg, logger.Nop(), Options{})
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Scheduler()
	require.NoError(t, err)

	enabled := map[string]bool{}
	for _, j := range s.ListJobs() {
		enabled[j.Name] = j.Enabled
	}
	assert.Equal(t, map[string]bool{
		jobs.NameAutoAbsent:     true,
		jobs.NameAutoCheckout:   true,
		jobs.NameMetricsRefresh: false,
	}, enabled)

	assert.ElementsMatch(t, []string{jobs.NameAutoAbsent, jobs.NameAutoCheckout, jobs.NameMetricsRefresh}, app.JobNames())
}

func TestScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t, nil), logger.Nop(), Options{})
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Scheduler()
	require.NoError(t, err)

	res, err := s.RunNow(ctx, jobs.NameAutoAbsent)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = app.Job("nope")
	assert.Error(t, err)
}

func TestOpenDatabase_RequiresURL(t *testing.T) {
	app := &App{Config: memoryConfig(t, nil), Log: logger.Nop()}
	_, err := app.OpenDatabase(context.Background())
	assert.Error(t, err)
}

type fakeDB struct {
	status *postgres.HealthStatus
	err    error
}

func (f fakeDB) Health(context.Context) (*postgres.HealthStatus, error) { return f.status, f.err }

func TestDatabaseCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		db      fakeDB
		wantErr string
	}{
		{"healthy", fakeDB{status: &postgres.HealthStatus{Healthy: true, CheckedAt: now, MaxConns: 4, AcquiredConns: 1}}, ""},
		{"pool exhausted stays ready", fakeDB{status: &postgres.HealthStatus{Healthy: true, CheckedAt: now, MaxConns: 4, AcquiredConns: 4}}, ""},
		{"ping failed", fakeDB{status: &postgres.HealthStatus{Error: "connection refused", CheckedAt: now}}, "database unreachable: connection refused"},
		{"pool closed", fakeDB{err: postgres.ErrConnectionClosed}, postgres.ErrConnectionClosed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := databaseCheck(tt.db, logger.Nop())(ctx)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDatabaseCheck_FailsReadiness(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t, nil), logger.Nop(), Options{})
	require.NoError(t, err)
	defer app.Close()

	app.Health.AddCheck("database", databaseCheck(fakeDB{status: &postgres.HealthStatus{Error: "timeout"}}, app.Log))
	status := app.Health.Check(ctx)
	assert.False(t, status.Healthy)
}
