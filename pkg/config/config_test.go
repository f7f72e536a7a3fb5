package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./agent-workspace", cfg.SandboxRoot)
	assert.Equal(t, time.Minute, cfg.ApprovalTimeout.Std())
	assert.Equal(t, "bulwark.db", cfg.KillSwitchPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulwark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sandbox_root: /srv/agent
approval_timeout: 30s
log_level: debug
deny_rules:
  - 'amount > 1000000000'
risk:
  limits:
    safe_amount: 50000000
    high_amount: 100000000
    cumulative_safe: 75000000
  weights:
    recipient_novelty: 15
    time_pressure: 10
    cumulative_spend: 30
    repeat_pattern: 15
    behavior_anomaly: 20
    compounding: 15
  thresholds:
    medium: 40
    high: 70
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/agent", cfg.SandboxRoot)
	assert.Equal(t, 30*time.Second, cfg.ApprovalTimeout.Std())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"amount > 1000000000"}, cfg.DenyRules)

	policy := cfg.RiskPolicy()
	assert.Equal(t, int64(50_000_000), policy.Limits.SafeAmount)
	assert.Equal(t, int64(100_000_000), policy.Limits.HighAmount)

	// Defaults not mentioned in the file survive.
	assert.Equal(t, "bulwark.db", cfg.KillSwitchPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulwark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sandbox_root: /from/file\n"), 0o600))

	t.Setenv("BULWARK_SANDBOX_ROOT", "/from/env")
	t.Setenv("APPROVAL_TIMEOUT_MS", "5000")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.SandboxRoot)
	assert.Equal(t, 5*time.Second, cfg.ApprovalTimeout.Std())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().SandboxRoot, cfg.SandboxRoot)
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulwark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("approval_timeout: -1s\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRiskPolicy_DefaultsWhenUnset(t *testing.T) {
	cfg := Default()
	policy := cfg.RiskPolicy()
	assert.Equal(t, int64(100_000_000), policy.Limits.SafeAmount)
	assert.Equal(t, 40, policy.Thresholds.Medium)
}
