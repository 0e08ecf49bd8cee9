// Package decision 定义模型输出的交易决策契约以及宽容解析逻辑。
package decision

// Trade actions. The executor treats anything else as HOLD.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Order types accepted by the broker layer.
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// TradeDecision 模型针对单个标的给出的一条可执行建议。
// 可选价格字段缺省为 nil，表示模型未给出。
type TradeDecision struct {
	Action          string   `json:"action"`
	Symbol          string   `json:"symbol"`
	Quantity        int      `json:"quantity"`
	OrderType       string   `json:"order_type"`
	LimitPrice      *float64 `json:"limit_price,omitempty"`
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
}

// Response 模型一次完整分析的结构化结果。
type Response struct {
	AnalysisSummary         string          `json:"analysis_summary"`
	Trades                  []TradeDecision `json:"trades"`
	PortfolioRecommendation string          `json:"portfolio_recommendation"`
	RiskAssessment          string          `json:"risk_assessment"`
}
