package portfolio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

type fakeBroker struct {
	account      *broker.AccountInfo
	accountErr   error
	positions    []broker.Position
	positionsErr error
}

func (f *fakeBroker) Connect(ctx context.Context) error        { return nil }
func (f *fakeBroker) Disconnect()                              {}
func (f *fakeBroker) TestConnection(ctx context.Context) bool  { return true }
func (f *fakeBroker) GetAccount(ctx context.Context) (*broker.AccountInfo, error) {
	return f.account, f.accountErr
}
func (f *fakeBroker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	return f.positions, f.positionsErr
}
func (f *fakeBroker) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	return nil, nil
}
func (f *fakeBroker) PlaceMarketOrder(ctx context.Context, symbol string, qty int, side string) (*broker.Order, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBroker) PlaceLimitOrder(ctx context.Context, symbol string, qty int, side string, limitPrice float64) (*broker.Order, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBroker) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBroker) GetOrdersHistory(ctx context.Context, status string, limit int) ([]broker.Order, error) {
	return nil, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeBroker) IsMarketOpen(ctx context.Context) bool                 { return true }
func (f *fakeBroker) GetMarketHours(ctx context.Context) (*broker.MarketHours, error) {
	return &broker.MarketHours{IsOpen: true}, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "trading.db"))
	if err != nil {
		t.Fatalf("打开 store 失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotRecordsToStore(t *testing.T) {
	fb := &fakeBroker{
		account: &broker.AccountInfo{Cash: 40000, Equity: 101000, LastEquity: 100000, PortfolioValue: 101000, BuyingPower: 80000},
		positions: []broker.Position{
			{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 150, CurrentPrice: 160, MarketValue: 1600, UnrealizedPL: 100, UnrealizedPLPC: 0.0667},
		},
	}
	ts := openTestStore(t)
	tr := NewTracker(fb, ts)
	tr.now = func() time.Time { return time.UnixMilli(5000) }

	sum, err := tr.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("快照失败: %v", err)
	}
	if sum.DayChange != 1000 {
		t.Fatalf("日内变动计算错误: %v", sum.DayChange)
	}
	if sum.DayChangePct < 0.0099 || sum.DayChangePct > 0.0101 {
		t.Fatalf("日内变动比例错误: %v", sum.DayChangePct)
	}

	snaps, err := ts.RecentSnapshots(context.Background(), 10)
	if err != nil {
		t.Fatalf("查询快照失败: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("期望 1 条快照, 实际 %d", len(snaps))
	}
	if snaps[0].Equity != 101000 || snaps[0].PositionCount != 1 {
		t.Fatalf("快照字段错误: %+v", snaps[0])
	}
}

func TestSnapshotToleratesPositionsFailure(t *testing.T) {
	fb := &fakeBroker{
		account:      &broker.AccountInfo{Cash: 100000, Equity: 100000, PortfolioValue: 100000},
		positionsErr: errors.New("timeout"),
	}
	tr := NewTracker(fb, nil)
	sum, err := tr.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("持仓失败不应导致快照失败: %v", err)
	}
	if len(sum.Positions) != 0 {
		t.Fatalf("期望空持仓, 实际 %d", len(sum.Positions))
	}
}

func TestSnapshotFailsWithoutAccount(t *testing.T) {
	fb := &fakeBroker{accountErr: errors.New("503")}
	tr := NewTracker(fb, nil)
	if _, err := tr.Snapshot(context.Background()); err == nil {
		t.Fatalf("账户不可得应当报错")
	}
}

func TestTotalReturn(t *testing.T) {
	ts := openTestStore(t)
	ctx := context.Background()
	for i, eq := range []float64{100000, 103000, 105000} {
		err := ts.RecordSnapshot(ctx, store.SnapshotRecord{
			Equity: eq, Cash: eq, PortfolioValue: eq,
			Timestamp: time.UnixMilli(int64(1000 + i)),
		})
		if err != nil {
			t.Fatalf("写入快照失败: %v", err)
		}
	}
	tr := NewTracker(&fakeBroker{}, ts)
	ret, err := tr.TotalReturn(ctx)
	if err != nil {
		t.Fatalf("计算收益失败: %v", err)
	}
	if ret < 0.049 || ret > 0.051 {
		t.Fatalf("期望约 5%% 收益, 实际 %v", ret)
	}
}

func TestRenderPositionsTable(t *testing.T) {
	out := RenderPositions([]broker.Position{
		{Symbol: "aapl", Qty: 10, AvgEntryPrice: 150, CurrentPrice: 160, MarketValue: 1600, UnrealizedPL: 100, UnrealizedPLPC: 0.0667},
		{Symbol: "TSLA", Qty: 4, AvgEntryPrice: 250, CurrentPrice: 240, MarketValue: 960, UnrealizedPL: -40, UnrealizedPLPC: -0.04},
	})
	for _, want := range []string{"AAPL", "TSLA", "$1,600.00", "+100.00", "-40.00", "6.67%", "-4.00%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("表格缺少 %q:\n%s", want, out)
		}
	}
}

func TestRenderPositionsEmpty(t *testing.T) {
	if out := RenderPositions(nil); out != "no open positions" {
		t.Fatalf("空持仓提示错误: %q", out)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(&Summary{
		Equity: 101000, Cash: 40000, BuyingPower: 80000, PortfolioValue: 101000,
		DayChange: 1000, DayChangePct: 0.01,
		Positions: make([]broker.Position, 2),
	})
	for _, want := range []string{"$101,000.00", "$40,000.00", "+1000.00", "1.00%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("概览缺少 %q:\n%s", want, out)
		}
	}
}
