package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/alerts"
	"github.com/bulwarklabs/bulwark/pkg/approval"
	"github.com/bulwarklabs/bulwark/pkg/audit"
	"github.com/bulwarklabs/bulwark/pkg/config"
	"github.com/bulwarklabs/bulwark/pkg/firewall"
	"github.com/bulwarklabs/bulwark/pkg/gate"
	"github.com/bulwarklabs/bulwark/pkg/killswitch"
	"github.com/bulwarklabs/bulwark/pkg/ledger"
	"github.com/bulwarklabs/bulwark/pkg/notify"
	"github.com/bulwarklabs/bulwark/pkg/risk"
)

// runtime bundles everything a command needs.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	killSwch *killswitch.Switch
	gate     *gate.Gate
	telegram *notify.Telegram
	broker   *approval.Broker
	closers  []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
	_ = r.logger.Sync()
}

// admin adapts the gate, kill-switch, and executor to the chat transport's
// administrative surface.
type admin struct {
	gate    *gate.Gate
	sw      *killswitch.Switch
	history ledger.History
}

func (a *admin) Freeze(ctx context.Context, reason, by string) error {
	return a.sw.Freeze(ctx, reason, by, 0)
}

func (a *admin) Resume(ctx context.Context, by string) error {
	return a.gate.ResetState(ctx, by)
}

func (a *admin) StatusLine(ctx context.Context) (string, error) {
	state, err := a.sw.Status(ctx)
	if err != nil {
		return "", err
	}
	mode := "ACTIVE"
	if state.Frozen {
		mode = "ENGAGED"
	}
	return "Kill Switch: " + mode, nil
}

func (a *admin) Transfers() ledger.History {
	return a.history
}

// buildRuntime wires the full pipeline from configuration.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	r := &runtime{cfg: cfg, logger: logger}

	var store killswitch.Store
	if cfg.RedisAddr != "" {
		rs, err := killswitch.OpenRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("open redis kill-switch store: %w", err)
		}
		r.closers = append(r.closers, rs.Close)
		store = rs
	} else {
		ss, err := killswitch.OpenSQLiteStore(cfg.KillSwitchPath)
		if err != nil {
			return nil, fmt.Errorf("open kill-switch store: %w", err)
		}
		r.closers = append(r.closers, ss.Close)
		store = ss
	}
	r.killSwch = killswitch.New(store)

	var fwOpts []firewall.Option
	if len(cfg.DenyRules) > 0 {
		rules, err := firewall.NewRuleSet(cfg.DenyRules)
		if err != nil {
			return nil, fmt.Errorf("compile deny rules: %w", err)
		}
		fwOpts = append(fwOpts, firewall.WithRules(rules))
	}
	fw, err := firewall.New(cfg.SandboxRoot, fwOpts...)
	if err != nil {
		return nil, err
	}

	var recorder *audit.Recorder
	if cfg.AuditEndpoint != "" {
		recorder = audit.NewRecorder(audit.NewHTTPSink(cfg.AuditEndpoint), logger)
	}

	var executor ledger.Executor
	if cfg.LedgerRPCURL != "" {
		executor = ledger.NewRPCExecutor(cfg.LedgerRPCURL, recorder, logger)
	} else {
		executor = ledger.NewSimExecutor(recorder)
	}

	r.broker = approval.NewBroker(nil, logger)

	emitters := []alerts.Emitter{alerts.NewLogEmitter(logger)}

	// The admin surface is filled in once the gate exists.
	adm := &admin{}
	if h, ok := executor.(ledger.History); ok {
		adm.history = h
	}
	telegram := notify.New(cfg.TelegramToken, cfg.TelegramChatID, r.broker, adm, logger)
	if telegram.Enabled() {
		emitters = append(emitters, telegram)
		r.broker.SetTransport(telegram)
	}
	r.telegram = telegram

	if cfg.PubSubProject != "" && cfg.PubSubTopic != "" {
		ps, err := alerts.NewPubSubEmitter(ctx, cfg.PubSubProject, cfg.PubSubTopic)
		if err != nil {
			return nil, fmt.Errorf("pubsub emitter: %w", err)
		}
		r.closers = append(r.closers, ps.Close)
		emitters = append(emitters, ps)
	}

	alerter := alerts.NewSuppressor(
		alerts.NewMultiEmitter(emitters...),
		cfg.AlertsPerMinute, cfg.AlertBurst, logger)

	r.gate = gate.New(gate.Options{
		KillSwitch:      r.killSwch,
		Firewall:        fw,
		Engine:          risk.NewEngine(cfg.RiskPolicy()),
		Broker:          r.broker,
		Executor:        executor,
		Alerter:         alerter,
		Logger:          logger,
		ApprovalTimeout: cfg.ApprovalTimeout.Std(),
		AlertCooldown:   cfg.AlertCooldown.Std(),
	})
	adm.gate = r.gate
	adm.sw = r.killSwch

	return r, nil
}

// startTelegram launches the poll loop when the transport is configured.
func (r *runtime) startTelegram(ctx context.Context) {
	if r.telegram.Enabled() {
		go r.telegram.Poll(ctx)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		cfg.Level = zap.NewAtomicLevel()
	}
	return cfg.Build()
}
