package config

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages feature toggles with percentage rollout per partner.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for support and debugging)
	partnerOverrides map[string]map[string]bool // partnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100). Partners are bucketed by hash of their ID.
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	PartnerID string
	Internal  bool
}

// Predefined feature flag names.
const (
	// === Attendance ===
	FeatureQRServerEngine = "attendance.qr_server_engine" // PNG QR codes rendered server-side
	FeatureAutoAbsent     = "attendance.auto_absent"      // auto-absent cron
	FeatureAutoCheckout   = "attendance.auto_checkout"    // auto-checkout cron

	// === Metrics ===
	FeatureEventRecompute = "metrics.event_recompute" // recompute metrics on domain events
	FeatureMetricsRefresh = "metrics.hourly_refresh"  // hourly full recompute
	FeatureCountersCache  = "metrics.counters_cache"  // cache batch counters in Redis

	// === Portal ===
	FeaturePortal = "portal.enabled" // /my/ojt pages
)

// LoadFeatureFlags builds the flags from defaults and v.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		partnerOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	if v != nil {
		ff.loadFrom(v)
	}
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureQRServerEngine, Description: "Render QR codes as PNG on the server", Enabled: true},
		{Name: FeatureAutoAbsent, Description: "Mark missing participants absent after session start", Enabled: true},
		{Name: FeatureAutoCheckout, Description: "Check participants out after session end", Enabled: true},
		{Name: FeatureEventRecompute, Description: "Recompute participant metrics on domain events", Enabled: true},
		{Name: FeatureMetricsRefresh, Description: "Recompute all participant metrics hourly", Enabled: true},
		{Name: FeatureCountersCache, Description: "Cache batch counters in Redis", Enabled: true},
		{Name: FeaturePortal, Description: "Serve the participant portal", Enabled: true},
	} {
		f := f
		if f.Enabled {
			f.RolloutPercent = 100
		}
		ff.features[f.Name] = &f
	}
}

// loadFrom applies overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_ATTENDANCE_AUTO_ABSENT=false
// Example: FEATURE_PORTAL_ENABLED=50 (50% of partners)
func (ff *FeatureFlags) loadFrom(v *viper.Viper) {
	for name, feature := range ff.features {
		val := strings.TrimSpace(v.GetString(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "attendance.auto_absent" -> "FEATURE_ATTENDANCE_AUTO_ABSENT"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context. A nil
// context evaluates the global switch only.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.PartnerID != "" {
		if overrides, ok := ff.partnerOverrides[ctx.PartnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	// Staff see every enabled feature.
	if ctx != nil && ctx.Internal {
		return true
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.PartnerID != "" {
		return isInRollout(ctx.PartnerID, featureName, feature.RolloutPercent)
	}
	return feature.RolloutPercent > 0
}

// isInRollout uses consistent hashing so partners stay in their bucket.
func isInRollout(partnerID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(partnerID))
	return int(h.Sum32()%100) < percent
}

// SetPartnerOverride forces a feature on or off for one partner.
func (ff *FeatureFlags) SetPartnerOverride(partnerID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.partnerOverrides[partnerID]; !ok {
		ff.partnerOverrides[partnerID] = make(map[string]bool)
	}
	ff.partnerOverrides[partnerID][featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		result[k] = *v
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
