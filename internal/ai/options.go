package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/gateway/provider"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/jsonutil"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/retry"
)

// 卖权推荐只给模型看流动性最好的前若干个合约。
const optionCandidateLimit = 10

// 推荐属于锦上添花，失败代价低，重试预算比主分析短。
const optionRetryBudget = 2

// Option types.
const (
	OptionCall = "call"
	OptionPut  = "put"
)

// OptionContract 候选期权合约。
type OptionContract struct {
	Symbol       string  `json:"symbol"`
	Underlying   string  `json:"underlying"`
	Type         string  `json:"type"`
	Strike       float64 `json:"strike"`
	Expiry       string  `json:"expiry"`
	Premium      float64 `json:"premium"`
	OpenInterest int     `json:"open_interest"`
	Volume       int     `json:"volume"`
}

// OptionRecommendation 模型选出的待卖出合约。
type OptionRecommendation struct {
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

const optionSystemPrompt = `You are an options income strategist. From the candidate
contracts provided, pick the single best contract to SELL for premium income.
Respond with a JSON object: {"symbol": "...", "type": "call"|"put",
"reasoning": "...", "confidence": 0.0-1.0}. Respond with JSON only.`

// rankCandidates 按未平仓量、成交量、权利金降序排列并截断。
func rankCandidates(candidates []OptionContract) []OptionContract {
	out := make([]OptionContract, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OpenInterest != out[j].OpenInterest {
			return out[i].OpenInterest > out[j].OpenInterest
		}
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Premium > out[j].Premium
	})
	if len(out) > optionCandidateLimit {
		out = out[:optionCandidateLimit]
	}
	return out
}

// RecommendOptionSell 让模型从候选合约中挑一个适合卖出的。
func (c *Client) RecommendOptionSell(ctx context.Context, candidates []OptionContract) (*OptionRecommendation, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("无候选合约")
	}
	ranked := rankCandidates(candidates)
	table, err := json.Marshal(ranked)
	if err != nil {
		return nil, fmt.Errorf("序列化候选合约失败: %w", err)
	}
	user := "Candidate contracts:\n" + string(table)

	var rec *OptionRecommendation
	p := retry.Policy{
		MaxAttempts: optionRetryBudget,
		Base:        c.backoffBase,
		Factor:      transientBackoffFactor,
		Retryable:   isTransient,
		Sleep:       c.sleep,
	}
	err = p.Do(ctx, func(ctx context.Context) error {
		raw, err := c.provider.Call(ctx, provider.ChatPayload{
			System:     optionSystemPrompt,
			User:       user,
			ExpectJSON: true,
		})
		if err != nil {
			return err
		}
		var parsed OptionRecommendation
		if perr := json.Unmarshal([]byte(jsonutil.StripFences(raw)), &parsed); perr != nil {
			return &parseFailure{err: perr}
		}
		parsed.Symbol = strings.ToUpper(strings.TrimSpace(parsed.Symbol))
		parsed.Type = coerceOptionType(parsed.Type)
		rec = &parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[ai] ✓ 卖权推荐 %s (%s) 置信度 %.2f", rec.Symbol, rec.Type, rec.Confidence)
	return rec, nil
}

// coerceOptionType 超出枚举域一律回落为 call。
func coerceOptionType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case OptionPut:
		return OptionPut
	default:
		return OptionCall
	}
}
