// Package risk 实现交易前的确定性风控闸门。
// 模型建议只有全部通过这里的检查才允许下单；检查顺序固定且短路。
package risk

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/decision"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
)

// 当日触发 PDT 提醒的成交笔数阈值。只告警，不拦截。
const pdtWarnTrades = 3

// Limits 风控阈值，来自配置，构造后不再变更。
type Limits struct {
	MaxPositionPct  float64
	MaxDailyLossPct float64
	MinConfidence   float64
}

// Verdict 单笔检查结论。Reason 在拒绝时说明原因。
type Verdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Status 对外暴露的风控状态快照。
type Status struct {
	DailyLoss          float64 `json:"daily_loss"`
	DailyLossLimit     float64 `json:"daily_loss_limit"`
	DailyLossRemaining float64 `json:"daily_loss_remaining"`
	DailyTrades        int     `json:"daily_trades"`
	MaxPositionValue   float64 `json:"max_position_value"`
	MinConfidence      float64 `json:"min_confidence"`
	KillSwitch         bool    `json:"kill_switch"`
	KillReason         string  `json:"kill_reason,omitempty"`
	RiskLevel          string  `json:"risk_level"`
}

// Manager 维护跨周期的风控状态。
// 单实例可能同时被交易循环与 HTTP 管理面访问，所有状态读写必须持锁。
type Manager struct {
	limits Limits

	mu          sync.Mutex
	dailyLoss   float64
	dailyTrades int
	lastReset   string // 自然日 YYYY-MM-DD，跨日懒重置
	killSwitch  bool
	killReason  string

	// now 可注入，跨日重置逻辑依赖它做测试
	now func() time.Time
}

func NewManager(limits Limits) *Manager {
	m := &Manager{limits: limits, now: time.Now}
	m.lastReset = dayKey(m.now())
	return m
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// resetIfNewDayLocked 跨过自然日边界时清零当日累计。调用方必须持锁。
func (m *Manager) resetIfNewDayLocked() {
	today := dayKey(m.now())
	if today == m.lastReset {
		return
	}
	logger.Infof("[risk] 新交易日 %s，清零日内统计（昨日亏损 $%.2f, 成交 %d 笔）",
		today, m.dailyLoss, m.dailyTrades)
	m.dailyLoss = 0
	m.dailyTrades = 0
	m.lastReset = today
}

// CheckTrade 按固定顺序执行短路检查，返回放行或拒绝结论。
// 价格未知的 BUY 跳过资金类算术检查（宁可放给券商拒单，也不拿 0 价算成本）。
func (m *Manager) CheckTrade(td decision.TradeDecision, account *broker.AccountInfo, positions []broker.Position) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()

	if m.killSwitch {
		return reject("Kill switch is active - all trading halted")
	}
	if td.Confidence < m.limits.MinConfidence {
		return reject(fmt.Sprintf("Confidence %.2f below minimum %.2f", td.Confidence, m.limits.MinConfidence))
	}

	lossLimit := account.PortfolioValue * m.limits.MaxDailyLossPct
	if m.dailyLoss >= lossLimit {
		return reject(fmt.Sprintf("Daily loss limit reached: $%.2f >= $%.2f", m.dailyLoss, lossLimit))
	}

	switch td.Action {
	case decision.ActionBuy:
		if v := m.checkBuyLocked(td, account, positions); !v.Approved {
			return v
		}
	case decision.ActionSell:
		if v := checkSell(td, positions); !v.Approved {
			return v
		}
	}

	if m.dailyTrades >= pdtWarnTrades {
		logger.Warnf("[risk] 当日已成交 %d 笔，注意 PDT 规则", m.dailyTrades)
	}
	return Verdict{Approved: true, Reason: "approved"}
}

func (m *Manager) checkBuyLocked(td decision.TradeDecision, account *broker.AccountInfo, positions []broker.Position) Verdict {
	price := estimatePrice(td, positions)
	if price == nil {
		logger.Debugf("[risk] %s 无可用估价，跳过资金检查", td.Symbol)
		return Verdict{Approved: true}
	}
	cost := *price * float64(td.Quantity)
	maxPosition := account.PortfolioValue * m.limits.MaxPositionPct
	if cost > maxPosition {
		return reject(fmt.Sprintf("Trade value $%.2f exceeds max position size $%.2f", cost, maxPosition))
	}
	if cost > account.Cash {
		return reject(fmt.Sprintf("Insufficient cash: need $%.2f, have $%.2f", cost, account.Cash))
	}
	return Verdict{Approved: true}
}

// estimatePrice BUY 估价：优先限价，否则用已持仓的现价；都没有返回 nil。
func estimatePrice(td decision.TradeDecision, positions []broker.Position) *float64 {
	if td.LimitPrice != nil && *td.LimitPrice > 0 {
		return td.LimitPrice
	}
	for i := range positions {
		if strings.EqualFold(positions[i].Symbol, td.Symbol) && positions[i].CurrentPrice > 0 {
			return &positions[i].CurrentPrice
		}
	}
	return nil
}

// checkSell 库存检查：不持有即拒绝，超量不截断、直接拒绝。
func checkSell(td decision.TradeDecision, positions []broker.Position) Verdict {
	var held float64
	for i := range positions {
		if strings.EqualFold(positions[i].Symbol, td.Symbol) {
			held = positions[i].Qty
			break
		}
	}
	if held <= 0 {
		return reject(fmt.Sprintf("No position in %s to sell", td.Symbol))
	}
	if float64(td.Quantity) > held {
		return reject(fmt.Sprintf("Cannot sell %d shares of %s, only have %.0f", td.Quantity, td.Symbol, held))
	}
	return Verdict{Approved: true}
}

func reject(reason string) Verdict {
	logger.Infof("[risk] ✗ 拒绝: %s", reason)
	return Verdict{Approved: false, Reason: reason}
}

// RecordTradeResult 记录一笔已执行交易的盈亏。
// 笔数恒递增；亏损额只进不出（盈利不冲销当日亏损）。
func (m *Manager) RecordTradeResult(pl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	m.dailyTrades++
	if pl < 0 {
		m.dailyLoss += -pl
	}
}

// ActivateKillSwitch 手动熔断。激活后只有显式解除才恢复交易。
func (m *Manager) ActivateKillSwitch(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = true
	m.killReason = reason
	logger.Warnf("[risk] ⛔ 熔断已激活: %s", reason)
}

func (m *Manager) DeactivateKillSwitch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = false
	m.killReason = ""
	logger.Infof("[risk] 熔断已解除")
}

// GetStatus 汇报当前风控状态与分级。
func (m *Manager) GetStatus(portfolioValue float64) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()

	limit := portfolioValue * m.limits.MaxDailyLossPct
	remaining := limit - m.dailyLoss
	if remaining < 0 {
		remaining = 0
	}
	s := Status{
		DailyLoss:          m.dailyLoss,
		DailyLossLimit:     limit,
		DailyLossRemaining: remaining,
		DailyTrades:        m.dailyTrades,
		MaxPositionValue:   portfolioValue * m.limits.MaxPositionPct,
		MinConfidence:      m.limits.MinConfidence,
		KillSwitch:         m.killSwitch,
		KillReason:         m.killReason,
	}
	switch {
	case m.killSwitch:
		s.RiskLevel = "HALTED"
	case limit > 0 && m.dailyLoss >= 0.8*limit:
		s.RiskLevel = "HIGH"
	case limit > 0 && m.dailyLoss >= 0.5*limit:
		s.RiskLevel = "MEDIUM"
	default:
		s.RiskLevel = "LOW"
	}
	return s
}
