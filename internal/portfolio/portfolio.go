// Package portfolio 汇总账户与持仓，提供快照与表格展示。
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/format"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

// Summary 某一时刻的组合概览。
type Summary struct {
	Timestamp      time.Time         `json:"timestamp"`
	Equity         float64           `json:"equity"`
	Cash           float64           `json:"cash"`
	BuyingPower    float64           `json:"buying_power"`
	PortfolioValue float64           `json:"portfolio_value"`
	DayChange      float64           `json:"day_change"`
	DayChangePct   float64           `json:"day_change_pct"`
	Positions      []broker.Position `json:"positions"`
}

// Tracker 从券商拉取账户并维护历史快照。
// 最近一次成功的概览会被缓存，券商不可达时状态接口可降级展示。
type Tracker struct {
	broker broker.Broker
	store  store.TradeStore

	mu   sync.Mutex
	last *Summary

	now func() time.Time
}

func NewTracker(b broker.Broker, ts store.TradeStore) *Tracker {
	return &Tracker{broker: b, store: ts, now: time.Now}
}

// Current 拉取当前账户与持仓，不落库。
func (t *Tracker) Current(ctx context.Context) (*Summary, error) {
	account, err := t.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取账户失败: %w", err)
	}
	positions, err := t.broker.GetPositions(ctx)
	if err != nil {
		logger.Warnf("[portfolio] 获取持仓失败，按空仓展示: %v", err)
		positions = nil
	}

	sum := &Summary{
		Timestamp:      t.now(),
		Equity:         account.Equity,
		Cash:           account.Cash,
		BuyingPower:    account.BuyingPower,
		PortfolioValue: account.PortfolioValue,
		Positions:      positions,
	}
	sum.DayChange = account.Equity - account.LastEquity
	if account.LastEquity > 0 {
		sum.DayChangePct = sum.DayChange / account.LastEquity
	}

	t.mu.Lock()
	t.last = sum
	t.mu.Unlock()
	return sum, nil
}

// LastKnown 返回最近一次成功拉取的概览，从未成功过返回 nil。
func (t *Tracker) LastKnown() *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Snapshot 在 Current 基础上落库一条快照。
// store 写失败只记日志，概览照常返回。
func (t *Tracker) Snapshot(ctx context.Context) (*Summary, error) {
	sum, err := t.Current(ctx)
	if err != nil {
		return nil, err
	}
	if t.store != nil {
		err := t.store.RecordSnapshot(ctx, store.SnapshotRecord{
			Equity:         sum.Equity,
			Cash:           sum.Cash,
			PortfolioValue: sum.PortfolioValue,
			PositionCount:  len(sum.Positions),
			Timestamp:      sum.Timestamp,
		})
		if err != nil {
			logger.Warnf("[portfolio] 快照落库失败: %v", err)
		}
	}
	return sum, nil
}

// TotalReturn 相对最早快照的累计收益率（小数）。快照不足时返回 0。
func (t *Tracker) TotalReturn(ctx context.Context) (float64, error) {
	if t.store == nil {
		return 0, nil
	}
	snaps, err := t.store.RecentSnapshots(ctx, 500)
	if err != nil {
		return 0, err
	}
	if len(snaps) < 2 {
		return 0, nil
	}
	first := snaps[len(snaps)-1]
	latest := snaps[0]
	if first.Equity <= 0 {
		return 0, nil
	}
	return (latest.Equity - first.Equity) / first.Equity, nil
}

// RenderSummary 渲染账户概览表格。
func RenderSummary(sum *Summary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Account", "Value"})
	t.AppendRows([]table.Row{
		{"Equity", format.Money(sum.Equity)},
		{"Cash", format.Money(sum.Cash)},
		{"Buying Power", format.Money(sum.BuyingPower)},
		{"Portfolio Value", format.Money(sum.PortfolioValue)},
		{"Day Change", fmt.Sprintf("%s (%.2f%%)", format.Signed(sum.DayChange, 2), sum.DayChangePct*100)},
		{"Positions", fmt.Sprintf("%d", len(sum.Positions))},
	})
	return t.Render()
}

// RenderPositions 渲染持仓表格。无持仓时返回提示文本。
func RenderPositions(positions []broker.Position) string {
	if len(positions) == 0 {
		return "no open positions"
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Qty", "Avg Entry", "Current", "Market Value", "P&L", "P&L %"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	for _, p := range positions {
		t.AppendRow(table.Row{
			strings.ToUpper(p.Symbol),
			format.Float(p.Qty, 2),
			format.Money(p.AvgEntryPrice),
			format.Money(p.CurrentPrice),
			format.Money(p.MarketValue),
			format.Signed(p.UnrealizedPL, 2),
			fmt.Sprintf("%.2f%%", p.UnrealizedPLPC*100),
		})
	}
	return t.Render()
}

// RenderTradeHistory 渲染最近交易表格。
func RenderTradeHistory(trades []store.TradeRecord) string {
	if len(trades) == 0 {
		return "no trades recorded"
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Symbol", "Action", "Qty", "Type", "Fill", "Status"})
	for _, tr := range trades {
		fill := "-"
		if tr.FillPrice != nil {
			fill = format.Money(*tr.FillPrice)
		}
		t.AppendRow(table.Row{
			tr.Timestamp.Format("01-02 15:04"),
			tr.Symbol,
			tr.Action,
			tr.Quantity,
			tr.OrderType,
			fill,
			tr.Status,
		})
	}
	return t.Render()
}
