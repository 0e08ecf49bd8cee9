// Package broker 定义券商能力接口与标准化账户/持仓/订单记录。
// 上层（风控、执行、组合）只依赖这里的类型，不关心具体后端。
package broker

import (
	"context"
	"time"
)

// AccountInfo 标准化账户快照。
type AccountInfo struct {
	ID             string  `json:"id"`
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
	Equity         float64 `json:"equity"`
	LastEquity     float64 `json:"last_equity"`
}

// Position 标准化持仓记录。
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
	// UnrealizedPLPC 为相对成本的收益率（小数，非百分比）。
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
}

// Order 标准化订单记录。Status 与 OrderType 统一为小写。
type Order struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Qty         float64   `json:"qty"`
	OrderType   string    `json:"order_type"`
	Status      string    `json:"status"`
	LimitPrice  *float64  `json:"limit_price,omitempty"`
	FilledQty   float64   `json:"filled_qty"`
	FilledPrice *float64  `json:"filled_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarketHours 当日市场时段。闭市时 Open/Close 可为 nil。
type MarketHours struct {
	IsOpen    bool       `json:"is_open"`
	NextOpen  *time.Time `json:"next_open,omitempty"`
	NextClose *time.Time `json:"next_close,omitempty"`
}

// Broker 券商后端能力接口。
// 查询类方法失败时返回 error，调用方按“软失败”处理：
// 记日志、当作空结果继续；绝不让单次查询失败拖垮整个循环。
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect()
	TestConnection(ctx context.Context) bool

	GetAccount(ctx context.Context) (*AccountInfo, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	PlaceMarketOrder(ctx context.Context, symbol string, qty int, side string) (*Order, error)
	PlaceLimitOrder(ctx context.Context, symbol string, qty int, side string, limitPrice float64) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrdersHistory(ctx context.Context, status string, limit int) ([]Order, error)
	CancelOrder(ctx context.Context, orderID string) error

	IsMarketOpen(ctx context.Context) bool
	GetMarketHours(ctx context.Context) (*MarketHours, error)
}

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)
