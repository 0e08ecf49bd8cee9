package ibgw

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
)

// 标的统一按 SMART 路由 / 美元计价限定。
const (
	exchangeSmart = "SMART"
	currencyUSD   = "USD"
)

// 启动时网关可能尚未就绪，连接走退避重试。
const startupConnectRetries = 3

// IBGW 网关后端。实现 broker.Broker。
type IBGW struct {
	gw *Gateway
	// sleep 可在测试中替换，避免真实等待。
	sleep func(time.Duration)
	now   func() time.Time
}

var _ broker.Broker = (*IBGW)(nil)

func New(gw *Gateway) *IBGW {
	return &IBGW{gw: gw, sleep: time.Sleep, now: time.Now}
}

func (b *IBGW) Connect(ctx context.Context) error {
	return b.gw.ConnectWithRetry(ctx, startupConnectRetries, b.gw.retryBase)
}

func (b *IBGW) Disconnect() { b.gw.Disconnect() }

func (b *IBGW) TestConnection(ctx context.Context) bool {
	if err := b.gw.ensureConnected(ctx); err != nil {
		logger.Warnf("[ibgw] 连接测试失败: %v", err)
		return false
	}
	return true
}

type wireAccount struct {
	AccountID      string  `json:"account_id"`
	TotalCash      float64 `json:"total_cash"`
	BuyingPower    float64 `json:"buying_power"`
	NetLiquidation float64 `json:"net_liquidation"`
}

func (b *IBGW) GetAccount(ctx context.Context) (*broker.AccountInfo, error) {
	var w wireAccount
	if err := b.gw.call(ctx, "account_summary", nil, &w); err != nil {
		return nil, err
	}
	// 网关不提供昨日权益，用净清算价值兜底
	return &broker.AccountInfo{
		ID:             w.AccountID,
		Cash:           w.TotalCash,
		BuyingPower:    w.BuyingPower,
		PortfolioValue: w.NetLiquidation,
		Equity:         w.NetLiquidation,
		LastEquity:     w.NetLiquidation,
	}, nil
}

type wirePosition struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	AvgCost     float64 `json:"avg_cost"`
	MarketPrice float64 `json:"market_price"`
}

func (b *IBGW) GetPositions(ctx context.Context) ([]broker.Position, error) {
	var ws []wirePosition
	params := map[string]any{"exchange": exchangeSmart, "currency": currencyUSD}
	if err := b.gw.call(ctx, "positions", params, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(ws))
	for _, w := range ws {
		out = append(out, derivePosition(w))
	}
	return out, nil
}

func (b *IBGW) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	all, err := b.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Symbol, symbol) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// derivePosition 网关只给数量/成本/现价，市值与浮盈在本端推导。
func derivePosition(w wirePosition) broker.Position {
	mv := w.Qty * w.MarketPrice
	pl := (w.MarketPrice - w.AvgCost) * w.Qty
	plpc := 0.0
	if w.AvgCost != 0 {
		plpc = (w.MarketPrice - w.AvgCost) / w.AvgCost
	}
	return broker.Position{
		Symbol:         w.Symbol,
		Qty:            w.Qty,
		AvgEntryPrice:  w.AvgCost,
		CurrentPrice:   w.MarketPrice,
		MarketValue:    mv,
		UnrealizedPL:   pl,
		UnrealizedPLPC: plpc,
	}
}

type wireOrder struct {
	OrderID     int64    `json:"order_id"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	Qty         float64  `json:"qty"`
	OrderType   string   `json:"order_type"`
	Status      string   `json:"status"`
	LimitPrice  *float64 `json:"limit_price,omitempty"`
	FilledQty   float64  `json:"filled_qty"`
	AvgFillPx   *float64 `json:"avg_fill_price,omitempty"`
	CreatedUnix int64    `json:"created_unix"`
}

func (b *IBGW) PlaceMarketOrder(ctx context.Context, symbol string, qty int, side string) (*broker.Order, error) {
	return b.placeOrder(ctx, symbol, qty, side, "market", nil)
}

func (b *IBGW) PlaceLimitOrder(ctx context.Context, symbol string, qty int, side string, limitPrice float64) (*broker.Order, error) {
	return b.placeOrder(ctx, symbol, qty, side, "limit", &limitPrice)
}

func (b *IBGW) placeOrder(ctx context.Context, symbol string, qty int, side, orderType string, limitPrice *float64) (*broker.Order, error) {
	params := map[string]any{
		"symbol":     strings.ToUpper(symbol),
		"exchange":   exchangeSmart,
		"currency":   currencyUSD,
		"side":       side,
		"qty":        qty,
		"order_type": orderType,
	}
	if limitPrice != nil {
		params["limit_price"] = *limitPrice
	}
	var placed struct {
		OrderID int64 `json:"order_id"`
	}
	if err := b.gw.call(ctx, "place_order", params, &placed); err != nil {
		return nil, err
	}

	// 给网关一点时间落定订单状态，再尽力补读成交字段
	if b.gw.settleWait > 0 {
		b.sleep(b.gw.settleWait)
	}
	id := strconv.FormatInt(placed.OrderID, 10)
	o, err := b.GetOrder(ctx, id)
	if err != nil || o == nil {
		logger.Warnf("[ibgw] 下单后读取状态失败，按已提交返回: %v", err)
		o = &broker.Order{
			ID:        id,
			Symbol:    strings.ToUpper(symbol),
			Side:      side,
			Qty:       float64(qty),
			OrderType: orderType,
			Status:    "new",
			CreatedAt: b.now().UTC(),
		}
		if limitPrice != nil {
			lp := *limitPrice
			o.LimitPrice = &lp
		}
	}
	logger.Infof("[ibgw] ✓ 下单 %s %s x%d 状态=%s id=%s", side, symbol, qty, o.Status, o.ID)
	return o, nil
}

func (b *IBGW) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	var w wireOrder
	if err := b.gw.call(ctx, "order_status", map[string]any{"order_id": orderID}, &w); err != nil {
		return nil, err
	}
	o := normalizeOrder(w)
	return &o, nil
}

func (b *IBGW) GetOrdersHistory(ctx context.Context, status string, limit int) ([]broker.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var ws []wireOrder
	params := map[string]any{"limit": limit}
	if status != "" && status != "all" {
		params["status"] = status
	}
	if err := b.gw.call(ctx, "orders", params, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.Order, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizeOrder(w))
	}
	return out, nil
}

func (b *IBGW) CancelOrder(ctx context.Context, orderID string) error {
	return b.gw.call(ctx, "cancel_order", map[string]any{"order_id": orderID}, nil)
}

// IsMarketOpen 网关不提供交易日历，用本地时钟近似：
// 周一至周五 14:30-21:00 UTC（美东常规时段，不含假日）。
func (b *IBGW) IsMarketOpen(ctx context.Context) bool {
	now := b.now().UTC()
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 14*60+30 && minutes < 21*60
}

func (b *IBGW) GetMarketHours(ctx context.Context) (*broker.MarketHours, error) {
	now := b.now().UTC()
	openAt := time.Date(now.Year(), now.Month(), now.Day(), 14, 30, 0, 0, time.UTC)
	closeAt := time.Date(now.Year(), now.Month(), now.Day(), 21, 0, 0, 0, time.UTC)
	return &broker.MarketHours{
		IsOpen:    b.IsMarketOpen(ctx),
		NextOpen:  &openAt,
		NextClose: &closeAt,
	}, nil
}

// IB 风格状态归一到统一小写形态。
var statusMap = map[string]string{
	"submitted":     "new",
	"presubmitted":  "accepted",
	"pendingsubmit": "pending_new",
	"filled":        "filled",
	"cancelled":     "canceled",
	"apicancelled":  "canceled",
	"inactive":      "rejected",
}

var orderTypeMap = map[string]string{
	"mkt": "market",
	"lmt": "limit",
}

func normalizeOrder(w wireOrder) broker.Order {
	status := strings.ToLower(strings.TrimSpace(w.Status))
	if mapped, ok := statusMap[status]; ok {
		status = mapped
	}
	otype := strings.ToLower(strings.TrimSpace(w.OrderType))
	if mapped, ok := orderTypeMap[otype]; ok {
		otype = mapped
	}
	return broker.Order{
		ID:          strconv.FormatInt(w.OrderID, 10),
		Symbol:      strings.ToUpper(w.Symbol),
		Side:        strings.ToLower(w.Side),
		Qty:         w.Qty,
		OrderType:   otype,
		Status:      status,
		LimitPrice:  w.LimitPrice,
		FilledQty:   w.FilledQty,
		FilledPrice: w.AvgFillPx,
		CreatedAt:   time.Unix(w.CreatedUnix, 0).UTC(),
	}
}
