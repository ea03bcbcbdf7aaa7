package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout, per-user overrides, and time-based activation.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // user UUID
	IsAdmin bool   // admin users get every feature
}

// Predefined feature flag names.
const (
	// === Ranking Features ===
	FeatureRankingRankChange = "ranking.rank_change" // Show rank changes (+2, -1)
	FeatureRankingNewBadge   = "ranking.new_badge"   // Mark boards entries absent last snapshot
	FeatureRankingRedisCache = "ranking.redis_cache" // Serve boards from Redis

	// === Search Features ===
	FeatureSearchPopularityBoost = "search.popularity_boost" // Prayer count boosts relevance
	FeatureSearchWholeWordBonus  = "search.whole_word_bonus" // Extra weight for whole-word title hits

	// === Notification Features ===
	FeatureNotifyPrayerReceived   = "notify.prayer_received"   // "Someone prayed for your offering"
	FeatureNotifyGuidanceReceived = "notify.guidance_received" // "New guidance on your offering"
	FeatureNotifyTopEntry         = "notify.top_entry"         // "Your offering entered the top 10"
	FeatureNotifyQuietHours       = "notify.quiet_hours"       // Suppress notices at night

	// === Experimental Features ===
	FeatureExperimentalTrending = "experimental.trending" // Velocity-based trending board
	FeatureExperimentalDigest   = "experimental.digest"   // Weekly activity digest
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Ranking features - enabled by default
	ff.features[FeatureRankingRankChange] = &Feature{
		Name:           FeatureRankingRankChange,
		Description:    "Show rank changes on boards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRankingNewBadge] = &Feature{
		Name:           FeatureRankingNewBadge,
		Description:    "Mark new entries on boards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRankingRedisCache] = &Feature{
		Name:           FeatureRankingRedisCache,
		Description:    "Serve ranking boards from Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Search features
	ff.features[FeatureSearchPopularityBoost] = &Feature{
		Name:           FeatureSearchPopularityBoost,
		Description:    "Boost search relevance by prayer count",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSearchWholeWordBonus] = &Feature{
		Name:           FeatureSearchWholeWordBonus,
		Description:    "Extra weight for whole-word title matches",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Notification features - carefully tuned to avoid spam
	ff.features[FeatureNotifyPrayerReceived] = &Feature{
		Name:           FeatureNotifyPrayerReceived,
		Description:    "Notify authors when a prayer is offered",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyGuidanceReceived] = &Feature{
		Name:           FeatureNotifyGuidanceReceived,
		Description:    "Notify authors when guidance is left",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyTopEntry] = &Feature{
		Name:           FeatureNotifyTopEntry,
		Description:    "Notify when an offering enters the top 10",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyQuietHours] = &Feature{
		Name:           FeatureNotifyQuietHours,
		Description:    "Suppress notices during quiet hours",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalTrending] = &Feature{
		Name:           FeatureExperimentalTrending,
		Description:    "Velocity-based trending board",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalDigest] = &Feature{
		Name:           FeatureExperimentalDigest,
		Description:    "Weekly activity digest",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_RANKING_REDIS_CACHE=false
// Example: FEATURE_EXPERIMENTAL_TRENDING=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ranking.redis_cache" -> "FEATURE_RANKING_REDIS_CACHE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.isEnabledLocked(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 || ctx == nil {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// isEnabledLocked mirrors IsEnabled for callers already holding the lock.
func (ff *FeatureFlags) isEnabledLocked(featureName string, ctx *FeatureContext) bool {
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	if ctx != nil && ctx.IsAdmin {
		return true
	}
	if !feature.Enabled {
		return false
	}
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}
	return feature.RolloutPercent > 0
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
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
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// NotificationsEnabled checks if any notifications are enabled.
func (ff *FeatureFlags) NotificationsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureNotifyPrayerReceived, ctx) ||
		ff.IsEnabled(FeatureNotifyGuidanceReceived, ctx) ||
		ff.IsEnabled(FeatureNotifyTopEntry, ctx)
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
