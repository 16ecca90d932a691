package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := newTestConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultExecutorConfig(t *testing.T) {
	cfg := newTestConfig()

	exec, err := cfg.GetExecutor()
	require.NoError(t, err)
	assert.Equal(t, "safe", exec.Mode)
	assert.Equal(t, 168*time.Hour, exec.QuarantineWindow)
	assert.Equal(t, "Janitor/Quarantine", exec.QuarantineLabel)
	assert.Equal(t, "Janitor/Review", exec.ReviewLabel)
	assert.Equal(t, 50, exec.MaxBatch)
	assert.Equal(t, time.Hour, exec.RateWindow)
	assert.Equal(t, 100, exec.RateBudget)
	assert.Equal(t, 3, exec.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, exec.RetryBaseDelay)
}

func TestDefaultEngineThresholds(t *testing.T) {
	cfg := newTestConfig()

	engine := cfg.GetEngine()
	assert.Equal(t, 0.85, engine.AutoActThreshold)
	assert.Equal(t, 0.55, engine.ReviewThreshold)
	assert.Empty(t, engine.BlockedSenders)
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	v := NewEmptyViper()
	v.Set("engine.auto_act_threshold", 1.3)
	cfg := NewFromViper(v)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_act_threshold")
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	v := NewEmptyViper()
	v.Set("engine.review_threshold", 0.9)
	cfg := NewFromViper(v)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review_threshold")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	v := NewEmptyViper()
	v.Set("executor.mode", "yolo")
	cfg := NewFromViper(v)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor.mode")
}

func TestValidateRejectsBadDurations(t *testing.T) {
	v := NewEmptyViper()
	v.Set("executor.quarantine_window", "soon")
	cfg := NewFromViper(v)
	assert.Error(t, cfg.Validate())

	v = NewEmptyViper()
	v.Set("cache.ttl", "whenever")
	cfg = NewFromViper(v)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveBudget(t *testing.T) {
	v := NewEmptyViper()
	v.Set("executor.rate_budget", 0)
	cfg := NewFromViper(v)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestGetRules(t *testing.T) {
	v := NewEmptyViper()
	v.Set("engine.rules", []map[string]interface{}{
		{"field": "sender", "pattern": "noisy-list.org", "action": "trash", "priority": 1},
		{"field": "subject", "pattern": "invoice", "action": "keep", "priority": 2},
	})
	cfg := NewFromViper(v)

	rules, err := cfg.GetRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "sender", rules[0].Field)
	assert.Equal(t, "trash", rules[0].Action)
	assert.Equal(t, 2, rules[1].Priority)
}

func TestGetRulesEmptyByDefault(t *testing.T) {
	rules, err := newTestConfig().GetRules()
	require.NoError(t, err)
	assert.Empty(t, rules)
}
