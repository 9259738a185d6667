package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "Asia/Jakarta", cfg.App.Timezone)
	assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, time.Minute, cfg.Scheduler.AutoAbsentInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.MetricsRefreshInterval)
	assert.Equal(t, 15*time.Minute, cfg.Attendance.Policy.LateGrace)
	assert.Equal(t, 45*time.Minute, cfg.Attendance.Policy.AutoAbsentAfter)
	assert.Equal(t, time.Duration(0), cfg.Attendance.Policy.CloseCheckinAfterEnd)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Warnings)
}

func TestFromViper_PolicyMinutes(t *testing.T) {
	v := viper.New()
	v.Set("OJT_LATE_GRACE_MINUTES", "10")
	v.Set("OJT_AUTO_ABSENT_AFTER_MINUTES", "soon")
	v.Set("OJT_AUTO_CHECKOUT_BUFFER_MINUTES", "-5")
	v.Set("OJT_CLOSE_CHECKIN_AFTER_END_MINUTES", "30")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	p := cfg.Attendance.Policy
	assert.Equal(t, 10*time.Minute, p.LateGrace)
	assert.Equal(t, 45*time.Minute, p.AutoAbsentAfter)
	assert.Equal(t, 5*time.Minute, p.AutoCheckoutBuffer)
	assert.Equal(t, 15*time.Minute, p.EarlyCheckinOpen)
	assert.Equal(t, 30*time.Minute, p.CloseCheckinAfterEnd)
	assert.Len(t, cfg.Warnings, 2)
}

func TestFromViper_DatabaseFromParts(t *testing.T) {
	v := viper.New()
	v.Set("DB_HOST", "db")
	v.Set("DB_USER", "ojt")
	v.Set("DB_PASSWORD", "secret")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://ojt:secret@db:5432/ojt?sslmode=disable", cfg.Database.URL)
}

func TestFromViper_Lists(t *testing.T) {
	v := viper.New()
	v.Set("HTTP_API_KEYS", " k1, ,k2 ")
	v.Set("APP_BASE_URL", "https://ojt.example.com/")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.HTTP.APIKeys)
	assert.Nil(t, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "https://ojt.example.com", cfg.App.BaseURL)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	v.Set("APP_ENV", "production")
	v.Set("APP_BASE_URL", "ojt.example.com")
	v.Set("DB_MIN_CONNS", 20)

	_, err := FromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "HTTP_API_KEYS is required in production")
	assert.Contains(t, err.Error(), "APP_BASE_URL must be an absolute http(s) URL")
	assert.Contains(t, err.Error(), "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OJT_LATE_GRACE_MINUTES=20\nAPP_NAME=from-file\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("APP_NAME", "from-env")
	// godotenv sets variables on the process; register them for cleanup.
	t.Setenv("OJT_LATE_GRACE_MINUTES", "")
	require.NoError(t, os.Unsetenv("OJT_LATE_GRACE_MINUTES"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.App.Name)
	assert.Equal(t, 20*time.Minute, cfg.Attendance.Policy.LateGrace)
}

func TestFeatureFlags(t *testing.T) {
	v := viper.New()
	v.Set("FEATURE_ATTENDANCE_AUTO_ABSENT", "false")
	v.Set("FEATURE_PORTAL_ENABLED", "0")
	ff := LoadFeatureFlags(v)

	assert.False(t, ff.IsEnabled(FeatureAutoAbsent, nil))
	assert.True(t, ff.IsEnabled(FeatureAutoCheckout, nil))
	assert.False(t, ff.IsEnabled(FeaturePortal, &FeatureContext{PartnerID: "ayu"}))
	assert.False(t, ff.IsEnabled("unknown", nil))

	ff.SetPartnerOverride("ayu", FeaturePortal, true)
	assert.True(t, ff.IsEnabled(FeaturePortal, &FeatureContext{PartnerID: "ayu"}))

	require.NoError(t, ff.SetRolloutPercent(FeatureQRServerEngine, 50))
	assert.True(t, ff.IsEnabled(FeatureQRServerEngine, &FeatureContext{PartnerID: "x", Internal: true}))
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureQRServerEngine, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.EnableFeature("unknown"), ErrFeatureNotFound)

	require.NoError(t, ff.DisableFeature(FeatureCountersCache))
	assert.False(t, ff.GetAllFeatures()[FeatureCountersCache].Enabled)

	var nilFlags *FeatureFlags
	assert.True(t, nilFlags.IsEnabled(FeaturePortal, nil))
}

func TestRolloutIsStable(t *testing.T) {
	in := 0
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("partner-%d", i)
		a := isInRollout(id, FeaturePortal, 30)
		assert.Equal(t, a, isInRollout(id, FeaturePortal, 30))
		if a {
			in++
		}
	}
	assert.InDelta(t, 300, in, 100)
}
