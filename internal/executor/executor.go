// Package executor 把通过风控的决策转换为真实订单，并维护执行台账。
package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/decision"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/risk"
)

// 执行结论状态。
const (
	StatusExecuted = "EXECUTED"
	StatusRejected = "REJECTED"
)

// Result 单笔决策的执行结论，携带原始决策便于调用方回查落库。
// HOLD 与账户不可得时不产生 Result（返回 nil）。
type Result struct {
	Status   string                 `json:"status"`
	Symbol   string                 `json:"symbol"`
	Action   string                 `json:"action"`
	Reason   string                 `json:"reason,omitempty"`
	Order    *broker.Order          `json:"order,omitempty"`
	Decision decision.TradeDecision `json:"decision"`
}

// ExecutionRecord 台账条目：决策快照 + 标准化订单。
type ExecutionRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Decision  decision.TradeDecision `json:"decision"`
	Order     broker.Order           `json:"order"`
}

// OrderManager 执行编排器。
type OrderManager struct {
	broker broker.Broker
	risk   *risk.Manager

	mu      sync.Mutex
	records []ExecutionRecord
}

func NewOrderManager(b broker.Broker, r *risk.Manager) *OrderManager {
	return &OrderManager{broker: b, risk: r}
}

// ExecuteTrade 执行单笔决策。
// 失败宁可不交易：账户快照拿不到就直接放弃本笔（返回 nil）。
func (om *OrderManager) ExecuteTrade(ctx context.Context, td decision.TradeDecision) *Result {
	if td.Action == decision.ActionHold {
		logger.Debugf("[executor] %s HOLD，跳过", td.Symbol)
		return nil
	}

	account, err := om.broker.GetAccount(ctx)
	if err != nil || account == nil {
		logger.Errorf("[executor] 获取账户失败，放弃 %s %s: %v", td.Action, td.Symbol, err)
		return nil
	}
	positions, err := om.broker.GetPositions(ctx)
	if err != nil {
		// 持仓拿不到按空仓处理：SELL 会被风控以无持仓拒绝
		logger.Warnf("[executor] 获取持仓失败，按空仓继续: %v", err)
		positions = nil
	}

	verdict := om.risk.CheckTrade(td, account, positions)
	if !verdict.Approved {
		return &Result{
			Status:   StatusRejected,
			Symbol:   td.Symbol,
			Action:   td.Action,
			Reason:   verdict.Reason,
			Decision: td,
		}
	}

	side := strings.ToLower(td.Action)
	var order *broker.Order
	if td.OrderType == decision.OrderTypeLimit && td.LimitPrice != nil {
		order, err = om.broker.PlaceLimitOrder(ctx, td.Symbol, td.Quantity, side, *td.LimitPrice)
	} else {
		order, err = om.broker.PlaceMarketOrder(ctx, td.Symbol, td.Quantity, side)
	}
	if err != nil || order == nil {
		logger.Errorf("[executor] 下单失败 %s %s x%d: %v", td.Action, td.Symbol, td.Quantity, err)
		return nil
	}

	om.appendRecord(td, *order)
	om.risk.RecordTradeResult(realizedPL(td, positions, order))
	logger.Infof("[executor] ✓ %s %s x%d -> %s (%s)", td.Action, td.Symbol, td.Quantity, order.Status, order.ID)
	return &Result{
		Status:   StatusExecuted,
		Symbol:   td.Symbol,
		Action:   td.Action,
		Order:    order,
		Decision: td,
	}
}

// realizedPL SELL 按成交价与持仓成本估算已实现盈亏；估不出来按 0 记。
func realizedPL(td decision.TradeDecision, positions []broker.Position, order *broker.Order) float64 {
	if td.Action != decision.ActionSell || order.FilledPrice == nil {
		return 0
	}
	for i := range positions {
		if strings.EqualFold(positions[i].Symbol, td.Symbol) && positions[i].AvgEntryPrice > 0 {
			qty := order.FilledQty
			if qty <= 0 {
				qty = float64(td.Quantity)
			}
			return (*order.FilledPrice - positions[i].AvgEntryPrice) * qty
		}
	}
	return 0
}

// ExecuteTrades 逐笔尽力执行。
// 每笔使用下单时点的最新账户快照做检查，不在批内模拟前序订单的现金占用；
// 同周期多笔 BUY 可能合计超出现金，由券商层最终拒单。
func (om *OrderManager) ExecuteTrades(ctx context.Context, trades []decision.TradeDecision) []Result {
	results := make([]Result, 0, len(trades))
	executed := 0
	for _, td := range trades {
		r := om.ExecuteTrade(ctx, td)
		if r == nil {
			continue
		}
		results = append(results, *r)
		if r.Status == StatusExecuted {
			executed++
		}
	}
	logger.Infof("[executor] 本批执行 %d/%d 笔", executed, len(trades))
	return results
}

func (om *OrderManager) appendRecord(td decision.TradeDecision, order broker.Order) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.records = append(om.records, ExecutionRecord{
		Timestamp: time.Now().UTC(),
		Decision:  td,
		Order:     order,
	})
}

// ExecutionHistory 返回最近 limit 条台账（时间正序），limit<=0 返回全部。
func (om *OrderManager) ExecutionHistory(limit int) []ExecutionRecord {
	om.mu.Lock()
	defer om.mu.Unlock()
	n := len(om.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ExecutionRecord, n)
	copy(out, om.records[len(om.records)-n:])
	return out
}

func (om *OrderManager) GetOrderStatus(ctx context.Context, orderID string) (*broker.Order, error) {
	return om.broker.GetOrder(ctx, orderID)
}

// CancelPendingOrders 撤销全部未完结订单，返回撤销数量。
func (om *OrderManager) CancelPendingOrders(ctx context.Context) int {
	orders, err := om.broker.GetOrdersHistory(ctx, "open", 100)
	if err != nil {
		logger.Warnf("[executor] 查询未完结订单失败: %v", err)
		return 0
	}
	canceled := 0
	for _, o := range orders {
		if err := om.broker.CancelOrder(ctx, o.ID); err != nil {
			logger.Warnf("[executor] 撤单 %s 失败: %v", o.ID, err)
			continue
		}
		canceled++
	}
	if canceled > 0 {
		logger.Infof("[executor] 已撤销 %d 笔未完结订单", canceled)
	}
	return canceled
}
