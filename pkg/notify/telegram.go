// Package notify implements the chat notification and approval transport
// over the Telegram Bot API: outbound alerts and approval requests, inbound
// approval resolutions and administrative commands, all bound to a single
// authorized chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/alerts"
	"github.com/bulwarklabs/bulwark/pkg/approval"
	"github.com/bulwarklabs/bulwark/pkg/contracts"
	"github.com/bulwarklabs/bulwark/pkg/ledger"
)

// ErrDisabled is returned by outbound calls when the transport has no
// token or chat id configured.
var ErrDisabled = errors.New("telegram transport disabled")

// Admin is the administrative surface chat commands drive. Transfers may
// return nil when no ledger history backend is wired.
type Admin interface {
	Freeze(ctx context.Context, reason, by string) error
	Resume(ctx context.Context, by string) error
	StatusLine(ctx context.Context) (string, error)
	Transfers() ledger.History
}

// Telegram is the transport. It implements approval.Transport and
// alerts.Emitter.
type Telegram struct {
	token  string
	chatID string
	api    string
	client *http.Client
	broker *approval.Broker
	admin  Admin
	logger *zap.Logger

	lastUpdateID int64
}

// New builds a transport. Empty token or chat id yields a disabled
// transport whose sends return ErrDisabled and whose poller exits at once.
func New(token, chatID string, broker *approval.Broker, admin Admin, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 40 * time.Second},
		broker: broker,
		admin:  admin,
		logger: logger,
	}
	if t.Enabled() {
		t.api = "https://api.telegram.org/bot" + token
	}
	return t
}

// Enabled reports whether the transport is configured.
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Emit sends a formatted alert. Attempts against an already-frozen switch
// stay out of the chat; the one-time freeze engagement notification
// (StageFreeze) still goes through.
func (t *Telegram) Emit(ctx context.Context, alert alerts.Alert) error {
	if !t.Enabled() {
		return ErrDisabled
	}
	if alert.Stage == alerts.StageKillSwitch {
		return nil
	}

	var b strings.Builder
	b.WriteString("\U0001F6A8 *AGENT ALERT*\n\n")
	fmt.Fprintf(&b, "*Level:* %s\n", escapeMarkdown(alert.Level))
	fmt.Fprintf(&b, "*Domain:* %s\n", escapeMarkdown(alert.Domain))
	fmt.Fprintf(&b, "*Stage:* %s\n\n", escapeMarkdown(alert.Stage))
	fmt.Fprintf(&b, "*Message:*\n%s", escapeMarkdown(alert.Message))
	if alert.Reason != "" {
		fmt.Fprintf(&b, "\n\n*Reason:*\n%s", escapeMarkdown(alert.Reason))
	}
	if alert.Risk != nil {
		fmt.Fprintf(&b, "\n\n*Risk:* %s \\(%s\\)",
			escapeMarkdown(string(alert.Risk.Level)),
			escapeMarkdown(fmt.Sprintf("%d", alert.Risk.Score)))
	}
	if alert.Intent != nil {
		fmt.Fprintf(&b, "\n\n*Action:* %s", escapeMarkdown(alert.Intent.Action))
	}

	return t.sendMessage(ctx, map[string]any{
		"chat_id":    t.chatID,
		"text":       b.String(),
		"parse_mode": "MarkdownV2",
	})
}

// SendApprovalRequest posts the proposal with Approve/Reject controls.
func (t *Telegram) SendApprovalRequest(ctx context.Context, proposal *contracts.Intent, risk *contracts.RiskAssessment) error {
	if !t.Enabled() {
		return ErrDisabled
	}

	text := fmt.Sprintf(
		"\U0001F6A8 APPROVAL REQUIRED\n\nProposal ID:\n%s\n\nAmount:\n%d\n\nRecipient:\n%s\n\nRisk Level:\n%s\n\nRisk Score:\n%d\n\nReason:\n%s",
		proposal.ID, proposal.Params.Amount, proposal.Params.Recipient,
		risk.Level, risk.Score, risk.Reasoning)

	return t.sendMessage(ctx, map[string]any{
		"chat_id": t.chatID,
		"text":    text,
		"reply_markup": map[string]any{
			"inline_keyboard": [][]map[string]string{{
				{"text": "\u2705 Approve", "callback_data": "APPROVE:" + proposal.ID},
				{"text": "\u274C Reject", "callback_data": "REJECT:" + proposal.ID},
			}},
		},
	})
}

// Poll runs the long-poll loop until ctx is cancelled, resolving approvals
// and serving admin commands. Returns immediately when disabled.
func (t *Telegram) Poll(ctx context.Context) {
	if !t.Enabled() {
		return
	}

	// Drop any webhook so getUpdates works.
	_ = t.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := t.pollOnce(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn("telegram poll failed", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
	} `json:"callback_query"`
}

func (t *Telegram) pollOnce(ctx context.Context) error {
	var updates []update
	err := t.call(ctx, "getUpdates", map[string]any{
		"offset":          t.lastUpdateID + 1,
		"timeout":         30,
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	if err != nil {
		return err
	}

	for _, u := range updates {
		t.lastUpdateID = u.UpdateID

		if u.Message != nil {
			// Commands are honored only from the authorized chat.
			if fmt.Sprintf("%d", u.Message.Chat.ID) != t.chatID {
				continue
			}
			t.handleCommand(ctx, u.Message.Text)
		}

		if u.CallbackQuery != nil {
			who := u.CallbackQuery.From.Username
			if who == "" {
				who = fmt.Sprintf("%d", u.CallbackQuery.From.ID)
			}
			t.handleCallback(ctx, u.CallbackQuery.ID, u.CallbackQuery.Data, who)
		}
	}
	return nil
}

func (t *Telegram) handleCommand(ctx context.Context, text string) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return
	}
	cmd, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")

	switch cmd {
	case "/freeze":
		if t.admin != nil {
			if err := t.admin.Freeze(ctx, "Manual freeze via Telegram", "TELEGRAM"); err != nil {
				t.logger.Error("freeze via telegram failed", zap.Error(err))
				return
			}
		}
		t.plain(ctx, "\U0001F6A8 KILL SWITCH ENGAGED\n\nUse /resume to unlock.")
	case "/resume":
		if t.admin != nil {
			if err := t.admin.Resume(ctx, "telegram:manual"); err != nil {
				t.logger.Error("resume via telegram failed", zap.Error(err))
				return
			}
		}
		t.plain(ctx, "\u2705 SYSTEM RESUMED")
	case "/status":
		status := "unknown"
		if t.admin != nil {
			if s, err := t.admin.StatusLine(ctx); err == nil {
				status = s
			}
		}
		t.plain(ctx, fmt.Sprintf("System Status:\n%s\nPending Approvals: %d", status, t.broker.PendingCount()))
	case "/logs":
		limit := 5
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
				limit = n
			}
		}
		t.sendTransferLog(ctx, limit)
	case "/tx":
		if len(parts) < 2 {
			t.plain(ctx, "Usage:\n/tx <index>\n/tx <digest>")
			return
		}
		t.sendTransferDetail(ctx, parts[1])
	}
}

func (t *Telegram) history() ledger.History {
	if t.admin == nil {
		return nil
	}
	return t.admin.Transfers()
}

func (t *Telegram) sendTransferLog(ctx context.Context, limit int) {
	hist := t.history()
	if hist == nil {
		t.plain(ctx, "Transfer history unavailable.")
		return
	}
	transfers, err := hist.Recent(ctx, limit)
	if err != nil {
		t.logger.Warn("transfer log query failed", zap.Error(err))
		t.plain(ctx, "Transfer history unavailable.")
		return
	}
	if len(transfers) == 0 {
		t.plain(ctx, "No settled transfers found.")
		return
	}

	var b strings.Builder
	b.WriteString("Recent Transfers\n")
	for i, tr := range transfers {
		fmt.Fprintf(&b, "\n#%d\nDigest: %s\nAmount: %d\nRecipient: %s\nTime: %s\n",
			i+1, tr.Digest, tr.Amount, shortRef(tr.Recipient), tr.Time.Format(time.RFC3339))
	}
	b.WriteString("\nUse /tx <index|digest> for details")
	t.plain(ctx, b.String())
}

func (t *Telegram) sendTransferDetail(ctx context.Context, ref string) {
	hist := t.history()
	if hist == nil {
		t.plain(ctx, "Transfer history unavailable.")
		return
	}

	var (
		tr  *ledger.Transfer
		err error
	)
	if idx, convErr := strconv.Atoi(ref); convErr == nil {
		var transfers []ledger.Transfer
		transfers, err = hist.Recent(ctx, 20)
		if err == nil {
			if idx < 1 || idx > len(transfers) {
				t.plain(ctx, "Invalid transfer index.")
				return
			}
			tr = &transfers[idx-1]
		}
	} else {
		tr, err = hist.Lookup(ctx, ref)
	}
	if err != nil {
		t.logger.Warn("transfer lookup failed", zap.Error(err))
		t.plain(ctx, "Transfer history unavailable.")
		return
	}
	if tr == nil {
		t.plain(ctx, "Transfer not found: "+ref)
		return
	}

	t.plain(ctx, fmt.Sprintf(
		"Transfer Detail\n\nDigest: %s\nAmount: %d\nRecipient: %s\nTime: %s",
		tr.Digest, tr.Amount, tr.Recipient, tr.Time.Format(time.RFC3339)))
}

func shortRef(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:10] + "..."
}

func (t *Telegram) handleCallback(ctx context.Context, callbackID, data, username string) {
	action, proposalID, ok := strings.Cut(data, ":")
	if !ok {
		return
	}
	approved := action == "APPROVE"
	approver := "telegram:" + username

	ack := "\u274C Rejected"
	if approved {
		ack = "\u2705 Approved"
	}
	_ = t.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              ack,
	}, nil)

	t.broker.Resolve(proposalID, approval.Decision{Approved: approved, ApprovedBy: approver})

	t.plain(ctx, fmt.Sprintf("%s:\n%s", ack, proposalID))
}

func (t *Telegram) plain(ctx context.Context, text string) {
	if err := t.sendMessage(ctx, map[string]any{"chat_id": t.chatID, "text": text}); err != nil {
		t.logger.Warn("telegram send failed", zap.Error(err))
	}
}

func (t *Telegram) sendMessage(ctx context.Context, body map[string]any) error {
	return t.call(ctx, "sendMessage", body, nil)
}

// call posts one Bot API method and decodes its result when out is non-nil.
func (t *Telegram) call(ctx context.Context, method string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.api+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s: %s", method, envelope.Description)
	}
	if out != nil {
		return json.Unmarshal(envelope.Result, out)
	}
	return nil
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
