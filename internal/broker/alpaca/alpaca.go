package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
)

// Alpaca 纸面交易后端。实现 broker.Broker。
type Alpaca struct {
	client *Client
}

var _ broker.Broker = (*Alpaca)(nil)

func New(baseURL, apiKey, secretKey string) (*Alpaca, error) {
	c, err := NewClient(baseURL, apiKey, secretKey)
	if err != nil {
		return nil, err
	}
	return &Alpaca{client: c}, nil
}

// Connect 对 REST 后端只做一次账户探活。
func (a *Alpaca) Connect(ctx context.Context) error {
	if _, err := a.GetAccount(ctx); err != nil {
		return fmt.Errorf("alpaca 连接校验失败: %w", err)
	}
	logger.Infof("[alpaca] ✓ 已连接纸面交易 API")
	return nil
}

// Disconnect REST 后端无连接状态，幂等空操作。
func (a *Alpaca) Disconnect() {}

func (a *Alpaca) TestConnection(ctx context.Context) bool {
	if _, err := a.GetAccount(ctx); err != nil {
		logger.Warnf("[alpaca] 连接测试失败: %v", err)
		return false
	}
	return true
}

func (a *Alpaca) GetAccount(ctx context.Context) (*broker.AccountInfo, error) {
	var w wireAccount
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/account", nil, nil, &w); err != nil {
		return nil, err
	}
	return &broker.AccountInfo{
		ID:             w.ID,
		Cash:           parseFloat(w.Cash),
		BuyingPower:    parseFloat(w.BuyingPower),
		PortfolioValue: parseFloat(w.PortfolioValue),
		Equity:         parseFloat(w.Equity),
		LastEquity:     parseFloat(w.LastEquity),
	}, nil
}

func (a *Alpaca) GetPositions(ctx context.Context) ([]broker.Position, error) {
	var ws []wirePosition
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/positions", nil, nil, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizePosition(w))
	}
	return out, nil
}

// GetPosition 无持仓时返回 (nil, nil)，404 不算错误。
func (a *Alpaca) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	var w wirePosition
	err := a.client.doRequest(ctx, http.MethodGet, "/v2/positions/"+url.PathEscape(symbol), nil, nil, &w)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p := normalizePosition(w)
	return &p, nil
}

func (a *Alpaca) PlaceMarketOrder(ctx context.Context, symbol string, qty int, side string) (*broker.Order, error) {
	return a.placeOrder(ctx, orderRequest{
		Symbol:        symbol,
		Qty:           strconv.Itoa(qty),
		Side:          side,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	})
}

func (a *Alpaca) PlaceLimitOrder(ctx context.Context, symbol string, qty int, side string, limitPrice float64) (*broker.Order, error) {
	return a.placeOrder(ctx, orderRequest{
		Symbol:        symbol,
		Qty:           strconv.Itoa(qty),
		Side:          side,
		Type:          "limit",
		TimeInForce:   "day",
		LimitPrice:    strconv.FormatFloat(limitPrice, 'f', 2, 64),
		ClientOrderID: uuid.NewString(),
	})
}

func (a *Alpaca) placeOrder(ctx context.Context, req orderRequest) (*broker.Order, error) {
	var w wireOrder
	if err := a.client.doRequest(ctx, http.MethodPost, "/v2/orders", nil, req, &w); err != nil {
		return nil, err
	}
	o := normalizeOrder(w)
	logger.Infof("[alpaca] ✓ 下单 %s %s x%s 状态=%s id=%s", o.Side, o.Symbol, req.Qty, o.Status, o.ID)
	return &o, nil
}

func (a *Alpaca) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	var w wireOrder
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, nil, &w); err != nil {
		return nil, err
	}
	o := normalizeOrder(w)
	return &o, nil
}

func (a *Alpaca) GetOrdersHistory(ctx context.Context, status string, limit int) ([]broker.Order, error) {
	if status == "" {
		status = "all"
	}
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("status", status)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("direction", "desc")
	var ws []wireOrder
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/orders", q, nil, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.Order, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizeOrder(w))
	}
	return out, nil
}

func (a *Alpaca) CancelOrder(ctx context.Context, orderID string) error {
	return a.client.doRequest(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(orderID), nil, nil, nil)
}

func (a *Alpaca) IsMarketOpen(ctx context.Context) bool {
	var w wireClock
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/clock", nil, nil, &w); err != nil {
		logger.Warnf("[alpaca] 查询市场状态失败: %v", err)
		return false
	}
	return w.IsOpen
}

func (a *Alpaca) GetMarketHours(ctx context.Context) (*broker.MarketHours, error) {
	var w wireClock
	if err := a.client.doRequest(ctx, http.MethodGet, "/v2/clock", nil, nil, &w); err != nil {
		return nil, err
	}
	return &broker.MarketHours{
		IsOpen:    w.IsOpen,
		NextOpen:  parseTimePtr(w.NextOpen),
		NextClose: parseTimePtr(w.NextClose),
	}, nil
}

func normalizePosition(w wirePosition) broker.Position {
	return broker.Position{
		Symbol:         w.Symbol,
		Qty:            parseFloat(w.Qty),
		AvgEntryPrice:  parseFloat(w.AvgEntryPrice),
		CurrentPrice:   parseFloat(w.CurrentPrice),
		MarketValue:    parseFloat(w.MarketValue),
		UnrealizedPL:   parseFloat(w.UnrealizedPL),
		UnrealizedPLPC: parseFloat(w.UnrealizedPLPC),
	}
}

// normalizeOrder 把订单字段规整到统一形态：状态/类型小写、数值转浮点。
func normalizeOrder(w wireOrder) broker.Order {
	created, _ := time.Parse(time.RFC3339, w.CreatedAt)
	return broker.Order{
		ID:          w.ID,
		Symbol:      w.Symbol,
		Side:        strings.ToLower(w.Side),
		Qty:         parseFloat(w.Qty),
		OrderType:   strings.ToLower(w.Type),
		Status:      strings.ToLower(w.Status),
		LimitPrice:  parseFloatPtr(w.LimitPrice),
		FilledQty:   parseFloat(w.FilledQty),
		FilledPrice: parseFloatPtr(w.FilledAvgPrice),
		CreatedAt:   created,
	}
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
