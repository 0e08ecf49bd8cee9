package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/executor"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/format"
)

// 中文说明：
// Slack webhook 通知。通知失败只记日志，不影响交易流程。

// Notifier 向 Slack incoming webhook 推送文本消息。
type Notifier struct {
	webhookURL string
	channel    string
	httpClient *http.Client
}

type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func New(webhookURL, channel string) *Notifier {
	return &Notifier{
		webhookURL: strings.TrimSpace(webhookURL),
		channel:    strings.TrimSpace(channel),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled 未配置 webhook 时所有通知都是空操作。
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

func (n *Notifier) post(ctx context.Context, text string) {
	if !n.Enabled() {
		return
	}
	body, err := json.Marshal(webhookPayload{Channel: n.channel, Text: text})
	if err != nil {
		logger.Warnf("slack 消息编码失败: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Warnf("slack 请求构建失败: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Warnf("slack 通知发送失败: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnf("slack 返回状态 %d", resp.StatusCode)
		return
	}
	logger.Debugf("✓ slack 通知已发送")
}

// NotifyTrade 推送一次交易结果。
func (n *Notifier) NotifyTrade(ctx context.Context, res executor.Result) {
	if !n.Enabled() || res.Order == nil {
		return
	}
	fill := "pending"
	if res.Order.FilledPrice != nil {
		fill = format.Money(*res.Order.FilledPrice)
	}
	n.post(ctx, fmt.Sprintf("%s %s %.0f %s @ %s (order %s, status %s)",
		tradeEmoji(res.Action), res.Action, res.Order.Qty, res.Symbol,
		fill, res.Order.ID, res.Order.Status))
}

// NotifyRejection 推送被风控拦截的交易。
func (n *Notifier) NotifyRejection(ctx context.Context, res executor.Result) {
	if !n.Enabled() {
		return
	}
	n.post(ctx, fmt.Sprintf("⛔ %s %s rejected: %s", res.Action, res.Symbol, res.Reason))
}

// NotifyAgentStarted 推送启动消息。
func (n *Notifier) NotifyAgentStarted(ctx context.Context, backend, strategy string, watchlist int) {
	n.post(ctx, fmt.Sprintf("🚀 trading agent started (broker=%s, strategy=%s, watchlist=%d symbols)",
		backend, strategy, watchlist))
}

// NotifyAgentStopped 推送停止消息。
func (n *Notifier) NotifyAgentStopped(ctx context.Context, reason string) {
	n.post(ctx, fmt.Sprintf("🛑 trading agent stopped: %s", reason))
}

// NotifyKillSwitch 推送 kill switch 状态变化。
func (n *Notifier) NotifyKillSwitch(ctx context.Context, active bool, reason string) {
	if active {
		n.post(ctx, fmt.Sprintf("⛔ kill switch activated: %s", reason))
		return
	}
	n.post(ctx, "✓ kill switch deactivated, trading resumed")
}

func tradeEmoji(action string) string {
	switch action {
	case "BUY":
		return "🟢"
	case "SELL":
		return "🔴"
	default:
		return "ℹ️"
	}
}
