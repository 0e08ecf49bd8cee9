package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/ai"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/analyst"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/executor"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/gateway/provider"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/market"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/prompt"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/risk"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

type fakeBroker struct {
	account    *broker.AccountInfo
	positions  []broker.Position
	marketOpen bool

	marketOrders int
	fillPrice    float64
}

func (f *fakeBroker) Connect(ctx context.Context) error       { return nil }
func (f *fakeBroker) Disconnect()                             {}
func (f *fakeBroker) TestConnection(ctx context.Context) bool { return f.account != nil }
func (f *fakeBroker) GetAccount(ctx context.Context) (*broker.AccountInfo, error) {
	if f.account == nil {
		return nil, errors.New("unavailable")
	}
	return f.account, nil
}
func (f *fakeBroker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	return f.positions, nil
}
func (f *fakeBroker) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	return nil, nil
}
func (f *fakeBroker) PlaceMarketOrder(ctx context.Context, symbol string, qty int, side string) (*broker.Order, error) {
	f.marketOrders++
	fill := f.fillPrice
	return &broker.Order{ID: "ord-1", Symbol: symbol, Side: side, Qty: float64(qty),
		OrderType: "market", Status: "filled", FilledQty: float64(qty), FilledPrice: &fill}, nil
}
func (f *fakeBroker) PlaceLimitOrder(ctx context.Context, symbol string, qty int, side string, limitPrice float64) (*broker.Order, error) {
	return &broker.Order{ID: "ord-2", Symbol: symbol, Side: side, Qty: float64(qty),
		OrderType: "limit", Status: "new", LimitPrice: &limitPrice}, nil
}
func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	return nil, errors.New("not found")
}
func (f *fakeBroker) GetOrdersHistory(ctx context.Context, status string, limit int) ([]broker.Order, error) {
	return nil, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeBroker) IsMarketOpen(ctx context.Context) bool                 { return f.marketOpen }
func (f *fakeBroker) GetMarketHours(ctx context.Context) (*broker.MarketHours, error) {
	return &broker.MarketHours{IsOpen: f.marketOpen}, nil
}

type fakeProvider struct {
	output string
	err    error
	calls  int
}

func (p *fakeProvider) ID() string { return "fake" }
func (p *fakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.output, nil
}

type fakeBars struct{}

func (fakeBars) DailyBars(ctx context.Context, symbol string, days int) ([]market.Bar, error) {
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 60)
	for i := range bars {
		price := 100 + float64(i)*0.5
		bars[i] = market.Bar{
			Time: base.AddDate(0, 0, i), Open: price, High: price + 1,
			Low: price - 1, Close: price, Volume: 1_000_000,
		}
	}
	return bars, nil
}
func (fakeBars) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return 130, nil
}

func newTestAgent(t *testing.T, fb *fakeBroker, p provider.ModelProvider) (*Agent, *store.Store) {
	t.Helper()
	ts, err := store.Open(filepath.Join(t.TempDir(), "trading.db"))
	if err != nil {
		t.Fatalf("打开 store 失败: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })

	client := ai.NewClient(p, 1)
	agg := market.NewAggregator(fakeBars{}, 60)
	an := analyst.New(client, agg, "balanced", prompt.Thresholds{
		MaxPositionPct: 0.10, MinConfidence: 0.70, StopLossPct: 0.05, TakeProfitPct: 0.10,
	})
	rm := risk.NewManager(risk.Limits{MaxPositionPct: 0.10, MaxDailyLossPct: 0.03, MinConfidence: 0.70})
	om := executor.NewOrderManager(fb, rm)

	a := New(fb, an, om, ts, nil, Options{
		Watchlist:      []string{"AAPL"},
		MinConfidence:  0.70,
		MaxPositionPct: 0.10,
	})
	return a, ts
}

const buyResponse = `{
  "analysis_summary": "momentum intact",
  "trades": [
    {"action": "BUY", "symbol": "AAPL", "quantity": 10, "order_type": "market", "confidence": 0.85, "reasoning": "breakout"}
  ],
  "risk_assessment": "moderate"
}`

func TestRunAnalysisCycleExecutesAndPersists(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, Equity: 100000, PortfolioValue: 100000},
		marketOpen: true,
		fillPrice:  130,
	}
	a, ts := newTestAgent(t, fb, &fakeProvider{output: buyResponse})

	if err := a.RunAnalysisCycle(context.Background()); err != nil {
		t.Fatalf("分析循环失败: %v", err)
	}
	if fb.marketOrders != 1 {
		t.Fatalf("期望下 1 笔市价单, 实际 %d", fb.marketOrders)
	}

	trades, err := ts.RecentTrades(context.Background(), 10)
	if err != nil {
		t.Fatalf("查询交易失败: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("期望落库 1 条交易, 实际 %d", len(trades))
	}
	if trades[0].Symbol != "AAPL" || trades[0].Status != executor.StatusExecuted {
		t.Fatalf("交易记录错误: %+v", trades[0])
	}
	if trades[0].Confidence != 0.85 || trades[0].OrderID != "ord-1" {
		t.Fatalf("决策信息未带入记录: %+v", trades[0])
	}
}

func TestRunAnalysisCycleRecordsDuplicateSymbolTrades(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, Equity: 100000, PortfolioValue: 100000},
		marketOpen: true,
		fillPrice:  130,
	}
	// 同一标的同向的两笔分批建仓决策
	dup := `{"analysis_summary": "scale in", "trades": [
		{"action": "BUY", "symbol": "AAPL", "quantity": 10, "order_type": "market", "confidence": 0.85, "reasoning": "first tranche"},
		{"action": "BUY", "symbol": "AAPL", "quantity": 5, "order_type": "market", "confidence": 0.80, "reasoning": "second tranche"}
	]}`
	a, ts := newTestAgent(t, fb, &fakeProvider{output: dup})

	if err := a.RunAnalysisCycle(context.Background()); err != nil {
		t.Fatalf("分析循环失败: %v", err)
	}
	if fb.marketOrders != 2 {
		t.Fatalf("两笔决策都应下单, 实际 %d", fb.marketOrders)
	}

	trades, err := ts.RecentTrades(context.Background(), 10)
	if err != nil {
		t.Fatalf("查询交易失败: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("两笔决策应各落一条记录, 实际 %d", len(trades))
	}
	qtys := map[int]bool{trades[0].Quantity: true, trades[1].Quantity: true}
	if !qtys[10] || !qtys[5] {
		t.Fatalf("记录应保留各自数量: %+v", trades)
	}
}

func TestRunAnalysisCycleSkipsWhenMarketClosed(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, PortfolioValue: 100000},
		marketOpen: false,
	}
	p := &fakeProvider{output: buyResponse}
	a, _ := newTestAgent(t, fb, p)

	if err := a.RunAnalysisCycle(context.Background()); err != nil {
		t.Fatalf("闭市跳过不应报错: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("闭市不应调用模型, 实际 %d 次", p.calls)
	}
}

func TestRunAnalysisCycleLowConfidenceFiltered(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, PortfolioValue: 100000},
		marketOpen: true,
	}
	low := `{"analysis_summary": "weak setup", "trades": [
		{"action": "BUY", "symbol": "AAPL", "quantity": 10, "order_type": "market", "confidence": 0.40}
	]}`
	a, ts := newTestAgent(t, fb, &fakeProvider{output: low})

	if err := a.RunAnalysisCycle(context.Background()); err != nil {
		t.Fatalf("分析循环失败: %v", err)
	}
	if fb.marketOrders != 0 {
		t.Fatalf("低置信度不应下单, 实际 %d", fb.marketOrders)
	}
	trades, _ := ts.RecentTrades(context.Background(), 10)
	if len(trades) != 0 {
		t.Fatalf("被过滤的决策不应落库: %d", len(trades))
	}
}

func TestRunAnalysisCycleFailsWithoutAccount(t *testing.T) {
	fb := &fakeBroker{marketOpen: true}
	a, _ := newTestAgent(t, fb, &fakeProvider{output: buyResponse})
	if err := a.RunAnalysisCycle(context.Background()); err == nil {
		t.Fatalf("账户不可得应当报错")
	}
}

func TestRunAnalysisCycleProviderError(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, PortfolioValue: 100000},
		marketOpen: true,
	}
	a, _ := newTestAgent(t, fb, &fakeProvider{err: errors.New("401 unauthorized")})
	if err := a.RunAnalysisCycle(context.Background()); err == nil {
		t.Fatalf("模型失败应当透出错误")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	fb := &fakeBroker{
		account:    &broker.AccountInfo{Cash: 50000, PortfolioValue: 100000},
		marketOpen: false,
	}
	a, _ := newTestAgent(t, fb, &fakeProvider{output: buyResponse})
	a.opts.AnalysisInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("期望 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start 未在取消后退出")
	}
}
