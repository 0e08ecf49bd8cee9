package analyst

import (
	"reflect"
	"testing"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/decision"
)

func floatPtr(v float64) *float64 { return &v }

func td(action, symbol string, qty int, conf float64) decision.TradeDecision {
	return decision.TradeDecision{Action: action, Symbol: symbol, Quantity: qty, Confidence: conf}
}

func TestFilterByConfidence(t *testing.T) {
	in := []decision.TradeDecision{
		td(decision.ActionBuy, "AAPL", 1, 0.85),
		td(decision.ActionSell, "MSFT", 2, 0.69),
		td(decision.ActionHold, "SPY", 0, 0.70),
		td(decision.ActionBuy, "NVDA", 3, 0.95),
	}
	inCopy := make([]decision.TradeDecision, len(in))
	copy(inCopy, in)

	out := FilterByConfidence(in, 0.70)
	if len(out) != 3 {
		t.Fatalf("应保留 3 条（0.69 被过滤, 0.70 保留）, got %d", len(out))
	}
	if out[0].Symbol != "AAPL" || out[1].Symbol != "SPY" || out[2].Symbol != "NVDA" {
		t.Fatalf("应保持原有顺序: %+v", out)
	}
	if !reflect.DeepEqual(in, inCopy) {
		t.Fatalf("过滤不应修改输入切片")
	}
	// 幂等：二次过滤结果不变
	again := FilterByConfidence(out, 0.70)
	if !reflect.DeepEqual(out, again) {
		t.Fatalf("重复过滤应得到相同结果")
	}
}

func TestValidateTradesSellClamp(t *testing.T) {
	positions := []broker.Position{{Symbol: "AAPL", Qty: 3}}

	out := ValidateTrades([]decision.TradeDecision{
		td(decision.ActionSell, "AAPL", 10, 0.9),
		td(decision.ActionSell, "TSLA", 1, 0.9),
	}, positions, 0, 0)

	if len(out) != 1 {
		t.Fatalf("无持仓的 SELL 应剔除, got %d 条", len(out))
	}
	if out[0].Quantity != 3 {
		t.Fatalf("超量 SELL 应截断到持有数, got %d", out[0].Quantity)
	}
}

func TestValidateTradesBuyBudget(t *testing.T) {
	out := ValidateTrades([]decision.TradeDecision{
		{Action: decision.ActionBuy, Symbol: "AAPL", Quantity: 10, LimitPrice: floatPtr(100), Confidence: 0.9}, // 1000
		{Action: decision.ActionBuy, Symbol: "MSFT", Quantity: 5, LimitPrice: floatPtr(100), Confidence: 0.9},  // 500, 预算只剩 200
		{Action: decision.ActionBuy, Symbol: "NVDA", Quantity: 2, LimitPrice: floatPtr(100), Confidence: 0.9},  // 200, 恰好用完
	}, nil, 1200, 0)

	if len(out) != 2 {
		t.Fatalf("超预算 BUY 应剔除, got %d 条", len(out))
	}
	if out[0].Symbol != "AAPL" || out[1].Symbol != "NVDA" {
		t.Fatalf("预算应按顺序累计扣减: %+v", out)
	}
}

func TestValidateTradesBuyPositionCap(t *testing.T) {
	// 现金充裕但单笔超出单仓上限：预算内也要剔除
	out := ValidateTrades([]decision.TradeDecision{
		{Action: decision.ActionBuy, Symbol: "AAPL", Quantity: 100, LimitPrice: floatPtr(150), Confidence: 0.9}, // 15000 > 10000
		{Action: decision.ActionBuy, Symbol: "MSFT", Quantity: 20, LimitPrice: floatPtr(100), Confidence: 0.9},  // 2000
	}, nil, 100000, 10000)

	if len(out) != 1 || out[0].Symbol != "MSFT" {
		t.Fatalf("超出单仓上限的 BUY 应剔除: %+v", out)
	}
}

func TestValidateTradesMarketBuyPassesThrough(t *testing.T) {
	out := ValidateTrades([]decision.TradeDecision{
		td(decision.ActionBuy, "AAPL", 1000, 0.9), // 无限价，成本未知
		td(decision.ActionHold, "SPY", 0, 0.9),
	}, nil, 10, 0)

	if len(out) != 2 {
		t.Fatalf("无法估价的 BUY 与 HOLD 应原样保留, got %d", len(out))
	}
}
