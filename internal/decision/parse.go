package decision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/jsonutil"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/text"
)

// 中文说明：
// 模型输出不可完全信任：字段可能缺失、类型可能跑偏。
// 解析采取“能救则救”的策略：顶层 JSON 坏掉才算失败，
// 单条 trade 坏掉只跳过并告警，其余字段逐一矫正到合法域。

// ParseResponse decodes the raw model output into a Response.
// A broken top-level document returns an error; a broken trade entry is
// dropped; out-of-domain field values are coerced to safe defaults.
func ParseResponse(raw string) (*Response, error) {
	cleaned := jsonutil.StripFences(raw)
	var doc struct {
		AnalysisSummary         string            `json:"analysis_summary"`
		Trades                  []json.RawMessage `json:"trades"`
		PortfolioRecommendation string            `json:"portfolio_recommendation"`
		RiskAssessment          string            `json:"risk_assessment"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		logger.Warnf("[decision] 响应不是合法 JSON: %v, raw=%s", err, text.Truncate(cleaned, 300))
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	resp := &Response{
		AnalysisSummary:         doc.AnalysisSummary,
		PortfolioRecommendation: doc.PortfolioRecommendation,
		RiskAssessment:          doc.RiskAssessment,
	}
	for i, entry := range doc.Trades {
		td, err := coerceTrade(entry)
		if err != nil {
			logger.Warnf("[decision] 跳过第 %d 条 trade: %v", i, err)
			continue
		}
		resp.Trades = append(resp.Trades, td)
	}
	return resp, nil
}

func coerceTrade(raw json.RawMessage) (TradeDecision, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return TradeDecision{}, fmt.Errorf("trade 不是对象: %w", err)
	}
	td := TradeDecision{
		Action:          coerceAction(asString(m["action"])),
		Symbol:          strings.ToUpper(strings.TrimSpace(asString(m["symbol"]))),
		Quantity:        asInt(m["quantity"]),
		OrderType:       coerceOrderType(asString(m["order_type"])),
		LimitPrice:      asFloatPtr(m["limit_price"]),
		StopLossPrice:   asFloatPtr(m["stop_loss_price"]),
		TakeProfitPrice: asFloatPtr(m["take_profit_price"]),
		Confidence:      asFloat(m["confidence"]),
		Reasoning:       asString(m["reasoning"]),
	}
	return td, nil
}

func coerceAction(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionHold
	}
}

func coerceOrderType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case OrderTypeLimit:
		return OrderTypeLimit
	default:
		return OrderTypeMarket
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asFloatPtr(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
