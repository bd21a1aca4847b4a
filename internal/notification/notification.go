package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/confirm"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/score"
)

// Notifier interface for different notification providers
type Notifier interface {
	Send(text string) error
	Name() string
	IsEnabled() bool
}

// Manager fans one message out to every enabled provider. Delivery is
// best effort: the last provider error is returned so the caller can
// log it, but nothing upstream treats a failed send as fatal.
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a message to all enabled providers
func (m *Manager) Send(text string) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(text); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendMomentumSnapshot sends the raw weighted-momentum view of a run:
// the top ranked symbols with their scores and source categories.
func (m *Manager) SendMomentumSnapshot(ranked []score.Record, limit int) error {
	if len(ranked) == 0 {
		return m.Send("📊 Moneycontrol Intraday Scanner\n\n⚠ No active stocks from Moneycontrol.")
	}

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	var b strings.Builder
	b.WriteString("📊 Moneycontrol Intraday Scanner\n\n🔹 MARKET MOMENTUM (Raw)\n")
	for _, rec := range ranked {
		fmt.Fprintf(&b, "• %s | Score %d | %s\n", rec.Symbol, rec.Score, strings.Join(rec.Categories, ", "))
	}
	return m.Send(b.String())
}

// SendTradeAlert sends one trade-ready setup with its derived levels.
func (m *Manager) SendTradeAlert(r confirm.Result) error {
	var b strings.Builder
	b.WriteString("🚨 INTRADAY BREAKOUT ALERT\n\n")
	fmt.Fprintf(&b, "Stock: %s\n", r.Symbol)
	fmt.Fprintf(&b, "Price: %.2f\n", r.Close)
	fmt.Fprintf(&b, "VWAP: %.2f\n", r.VWAP)
	fmt.Fprintf(&b, "RSI(14): %.1f\n", r.RSI)
	fmt.Fprintf(&b, "Session: %+.2f%%\n\n", r.SessionChangePct)
	fmt.Fprintf(&b, "Entry: %.2f\n", r.Entry)
	fmt.Fprintf(&b, "SL: %.2f\n", r.Stop)
	fmt.Fprintf(&b, "Target: %.2f\n", r.Target)
	if len(r.Reasons) > 0 {
		b.WriteString("\nReasons:\n- ")
		b.WriteString(strings.Join(r.Reasons, "\n- "))
	}
	return m.Send(b.String())
}

// SendEarlyMomentum sends a watch notice for a candidate that is
// building toward a setup but is not yet trade-ready.
func (m *Manager) SendEarlyMomentum(r confirm.Result) error {
	var b strings.Builder
	b.WriteString("🟡 EARLY MOMENTUM\n\n")
	fmt.Fprintf(&b, "Stock: %s\n", r.Symbol)
	fmt.Fprintf(&b, "Price: %.2f (VWAP %.2f)\n", r.Close, r.VWAP)
	fmt.Fprintf(&b, "RSI(14): %.1f\n", r.RSI)
	b.WriteString("\n➡ Watching for breakout confirmation")
	return m.Send(b.String())
}

// SendNoSetups tells the channel a completed run produced nothing.
func (m *Manager) SendNoSetups() error {
	return m.Send("⚠ No clean intraday setups yet.\n➡ Market likely choppy / waiting.")
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		baseURL:  "https://api.telegram.org",
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(text string) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"text":    text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(text string) error {
	if !d.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"content": text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
