// Package ai 封装对模型的分析调用：重试编排、响应解析与兜底。
package ai

import (
	"context"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/decision"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/gateway/provider"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/jsonutil"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/retry"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/text"
)

// 瞬时错误的退避节奏：5s, 15s, 45s ...
const (
	transientBackoffBase   = 5 * time.Second
	transientBackoffFactor = 3
)

// Client 面向交易域的模型客户端。
type Client struct {
	provider   provider.ModelProvider
	maxRetries int

	// 测试注入点
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(p provider.ModelProvider, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		provider:    p,
		maxRetries:  maxRetries,
		backoffBase: transientBackoffBase,
	}
}

// transientSignatures 模型侧的可重试错误特征。
var transientSignatures = []string{
	"503",
	"429",
	"unavailable",
	"overloaded",
	"quota",
	"resource_exhausted",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*parseFailure); ok {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// parseFailure 标记“响应已拿到但不是合法 JSON”。
// 模型对同一提示词大概率给出同样坏的输出，重试没有意义。
type parseFailure struct{ err error }

func (e *parseFailure) Error() string { return e.err.Error() }

// AnalyzeMarket 请求模型给出结构化交易建议。
// 瞬时错误按指数退避重试；解析失败立即放弃（不重试）。
// 失败时返回 (nil, err)，调用方按“本轮无建议”处理。
func (c *Client) AnalyzeMarket(ctx context.Context, system, user string) (*decision.Response, error) {
	return c.analyze(ctx, system, user, c.maxRetries)
}

func (c *Client) analyze(ctx context.Context, system, user string, maxAttempts int) (*decision.Response, error) {
	var resp *decision.Response
	p := retry.Policy{
		MaxAttempts: maxAttempts,
		Base:        c.backoffBase,
		Factor:      transientBackoffFactor,
		Retryable:   isTransient,
		Sleep:       c.sleep,
	}
	err := p.Do(ctx, func(ctx context.Context) error {
		raw, err := c.provider.Call(ctx, provider.ChatPayload{
			System:     system,
			User:       user,
			ExpectJSON: true,
		})
		if err != nil {
			logger.Warnf("[ai] 模型调用失败: %v", err)
			return err
		}
		logger.LogLLMPayload("response", jsonutil.Pretty(raw))
		parsed, perr := decision.ParseResponse(raw)
		if perr != nil {
			logger.Errorf("[ai] 响应解析失败，不重试: %v raw=%s", perr, text.Truncate(raw, 500))
			return &parseFailure{err: perr}
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[ai] ✓ 模型返回 %d 条决策", len(resp.Trades))
	return resp, nil
}
