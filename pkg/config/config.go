// Package config loads gate configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bulwarklabs/bulwark/pkg/risk"
)

// Duration unmarshals from "30s" style YAML strings, which the yaml
// package does not do for time.Duration itself.
type Duration time.Duration

// UnmarshalYAML parses a duration string scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything the gate and its collaborators need at startup.
type Config struct {
	// SandboxRoot bounds filesystem and script targets.
	SandboxRoot string `yaml:"sandbox_root"`
	// ApprovalTimeout bounds the human approval wait.
	ApprovalTimeout Duration `yaml:"approval_timeout"`
	// AlertCooldown throttles repeated frozen-state alerts.
	AlertCooldown Duration `yaml:"alert_cooldown"`
	// AlertsPerMinute and AlertBurst bound outbound alert volume.
	AlertsPerMinute float64 `yaml:"alerts_per_minute"`
	AlertBurst      int     `yaml:"alert_burst"`
	LogLevel        string  `yaml:"log_level"`

	// KillSwitchPath is the sqlite file backing the durable breaker.
	// RedisAddr, when set, selects the redis backend instead.
	KillSwitchPath string `yaml:"kill_switch_path"`
	RedisAddr      string `yaml:"redis_addr"`

	// AuditEndpoint is the blob-store endpoint; empty disables auditing.
	AuditEndpoint string `yaml:"audit_endpoint"`
	// LedgerRPCURL is the execution node; empty selects the simulator.
	LedgerRPCURL string `yaml:"ledger_rpc_url"`

	// Telegram transport. Both must be set to enable it.
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`

	// PubSub alert stream; both must be set to enable it.
	PubSubProject string `yaml:"pubsub_project"`
	PubSubTopic   string `yaml:"pubsub_topic"`

	// DenyRules are extra CEL deny expressions for the firewall.
	DenyRules []string `yaml:"deny_rules"`

	// Risk overrides the engine tuning when present.
	Risk *risk.Policy `yaml:"risk"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		SandboxRoot:     "./agent-workspace",
		ApprovalTimeout: Duration(time.Minute),
		AlertCooldown:   Duration(time.Minute),
		AlertsPerMinute: 30,
		AlertBurst:      10,
		LogLevel:        "info",
		KillSwitchPath:  "bulwark.db",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.ApprovalTimeout <= 0 {
		return Config{}, fmt.Errorf("approval_timeout must be positive")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BULWARK_SANDBOX_ROOT"); v != "" {
		c.SandboxRoot = v
	}
	if v := os.Getenv("APPROVAL_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.ApprovalTimeout = Duration(time.Duration(ms) * time.Millisecond)
		}
	}
	if v := os.Getenv("BULWARK_KILL_SWITCH_PATH"); v != "" {
		c.KillSwitchPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("AUDIT_ENDPOINT"); v != "" {
		c.AuditEndpoint = v
	}
	if v := os.Getenv("LEDGER_RPC_URL"); v != "" {
		c.LedgerRPCURL = v
	}
	if v := os.Getenv("TG_BOT_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		c.TelegramChatID = v
	}
	if v := os.Getenv("PUBSUB_PROJECT"); v != "" {
		c.PubSubProject = v
	}
	if v := os.Getenv("PUBSUB_TOPIC"); v != "" {
		c.PubSubTopic = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// RiskPolicy returns the engine tuning, stock unless overridden.
func (c *Config) RiskPolicy() risk.Policy {
	if c.Risk != nil {
		return *c.Risk
	}
	return risk.DefaultPolicy()
}
