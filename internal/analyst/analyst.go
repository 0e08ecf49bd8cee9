// Package analyst 组织一轮完整分析：行情聚合 -> 提示词 -> 模型调用，
// 并提供置信度过滤与咨询性预检。
package analyst

import (
	"context"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/ai"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/decision"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/market"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/prompt"
)

// Analyst 由模型驱动的交易分析器。
type Analyst struct {
	client     *ai.Client
	aggregator *market.Aggregator
	strategy   string
	thresholds prompt.Thresholds
	now        func() time.Time
}

func New(client *ai.Client, aggregator *market.Aggregator, strategy string, th prompt.Thresholds) *Analyst {
	return &Analyst{
		client:     client,
		aggregator: aggregator,
		strategy:   strategy,
		thresholds: th,
		now:        time.Now,
	}
}

// AnalyzeAndRecommend 对观察列表做一轮分析并请求模型给出建议。
func (a *Analyst) AnalyzeAndRecommend(ctx context.Context, cash, portfolioValue float64, positions []broker.Position, watchlist []string) (*decision.Response, error) {
	analyses := a.aggregator.AnalyzeWatchlist(ctx, watchlist)
	marketBlock := market.FormatForLLM(analyses)

	system := prompt.SystemPrompt(a.strategy)
	user := prompt.BuildAnalysisPrompt(a.now(), cash, portfolioValue, positions, marketBlock, a.thresholds)

	resp, err := a.client.AnalyzeMarket(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// FilterByConfidence 丢弃置信度低于阈值的决策。
// 纯函数：不改输入、保持顺序，重复应用结果不变。
func FilterByConfidence(trades []decision.TradeDecision, minConfidence float64) []decision.TradeDecision {
	out := make([]decision.TradeDecision, 0, len(trades))
	for _, td := range trades {
		if td.Confidence < minConfidence {
			logger.Infof("[analyst] 过滤 %s %s：置信度 %.2f < %.2f",
				td.Action, td.Symbol, td.Confidence, minConfidence)
			continue
		}
		out = append(out, td)
	}
	return out
}

// ValidateTrades 咨询性预检：按现金余量、单仓上限与持仓对决策做就地修正。
// SELL 超量截断到持有数，BUY 超出累计现金预算或单仓上限则剔除。
// maxPositionValue <= 0 表示不做单仓上限检查。
// 只是减少明显会被打回的决策，最终裁决仍在风控（CheckTrade）。
func ValidateTrades(trades []decision.TradeDecision, positions []broker.Position, cash, maxPositionValue float64) []decision.TradeDecision {
	held := make(map[string]float64, len(positions))
	for _, p := range positions {
		held[strings.ToUpper(p.Symbol)] = p.Qty
	}

	out := make([]decision.TradeDecision, 0, len(trades))
	remaining := cash
	for _, td := range trades {
		switch td.Action {
		case decision.ActionSell:
			have := held[strings.ToUpper(td.Symbol)]
			if have <= 0 {
				logger.Warnf("[analyst] 预检剔除 SELL %s：无持仓", td.Symbol)
				continue
			}
			if float64(td.Quantity) > have {
				logger.Warnf("[analyst] 预检截断 SELL %s：%d -> %.0f", td.Symbol, td.Quantity, have)
				td.Quantity = int(have)
			}
			out = append(out, td)
		case decision.ActionBuy:
			if td.LimitPrice == nil || *td.LimitPrice <= 0 {
				// 无法估算成本，留给风控裁决
				out = append(out, td)
				continue
			}
			cost := *td.LimitPrice * float64(td.Quantity)
			if maxPositionValue > 0 && cost > maxPositionValue {
				logger.Warnf("[analyst] 预检剔除 BUY %s：$%.2f 超出单仓上限 $%.2f", td.Symbol, cost, maxPositionValue)
				continue
			}
			if cost > remaining {
				logger.Warnf("[analyst] 预检剔除 BUY %s：需要 $%.2f，剩余预算 $%.2f", td.Symbol, cost, remaining)
				continue
			}
			remaining -= cost
			out = append(out, td)
		default:
			out = append(out, td)
		}
	}
	return out
}
