package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/gateway/provider"
)

// scriptedProvider 按脚本依次返回响应或错误。
type scriptedProvider struct {
	calls   int
	outputs []string
	errs    []error
}

func (s *scriptedProvider) ID() string { return "scripted" }

func (s *scriptedProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("script exhausted")
}

func newTestClient(p provider.ModelProvider, maxRetries int) *Client {
	c := NewClient(p, maxRetries)
	c.backoffBase = 0
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

const goodResponse = `{"analysis_summary":"ok","trades":[{"action":"BUY","symbol":"AAPL","quantity":1,"order_type":"market","confidence":0.8}],"portfolio_recommendation":"","risk_assessment":"low"}`

func TestAnalyzeMarketParseFailureNotRetried(t *testing.T) {
	p := &scriptedProvider{outputs: []string{"sorry, I cannot answer in JSON", goodResponse}}
	c := newTestClient(p, 3)

	resp, err := c.AnalyzeMarket(context.Background(), "sys", "user")
	if err == nil || resp != nil {
		t.Fatalf("解析失败应返回 nil")
	}
	if p.calls != 1 {
		t.Fatalf("解析失败不应重试，期望恰好 1 次调用, got %d", p.calls)
	}
}

func TestAnalyzeMarketRetriesTransientErrors(t *testing.T) {
	p := &scriptedProvider{
		errs:    []error{errors.New("status=503: service unavailable"), errors.New("model overloaded, try later")},
		outputs: []string{"", "", goodResponse},
	}
	c := newTestClient(p, 3)

	resp, err := c.AnalyzeMarket(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("瞬时错误重试后应成功: %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("期望 3 次调用, got %d", p.calls)
	}
	if len(resp.Trades) != 1 || resp.Trades[0].Symbol != "AAPL" {
		t.Fatalf("响应内容不对: %+v", resp)
	}
}

func TestAnalyzeMarketExhaustsRetryBudget(t *testing.T) {
	p := &scriptedProvider{
		errs: []error{
			errors.New("429 too many requests"),
			errors.New("RESOURCE_EXHAUSTED: quota exceeded"),
			errors.New("503 again"),
			errors.New("503 yet again"),
		},
	}
	c := newTestClient(p, 3)

	if _, err := c.AnalyzeMarket(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("预算耗尽应返回错误")
	}
	if p.calls != 3 {
		t.Fatalf("重试上限 3 应恰好调用 3 次, got %d", p.calls)
	}
}

func TestAnalyzeMarketFatalErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("status=401: invalid api key")}}
	c := newTestClient(p, 3)

	if _, err := c.AnalyzeMarket(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("致命错误应直接失败")
	}
	if p.calls != 1 {
		t.Fatalf("致命错误不应重试, got %d", p.calls)
	}
}

func TestTransientBackoffSchedule(t *testing.T) {
	var waits []time.Duration
	p := &scriptedProvider{
		errs:    []error{errors.New("503"), errors.New("503"), errors.New("503")},
		outputs: []string{"", "", "", goodResponse},
	}
	c := NewClient(p, 4)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	if _, err := c.AnalyzeMarket(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("应最终成功: %v", err)
	}
	want := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("退避次数不对: %v", waits)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("第 %d 次退避应为 %v, got %v", i, want[i], waits[i])
		}
	}
}

func TestRecommendOptionSellRanksAndCoerces(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"symbol":"aapl260918c00200000","type":"covered call","reasoning":"high oi","confidence":0.75}`}}
	c := newTestClient(p, 3)

	candidates := []OptionContract{
		{Symbol: "LOW-OI", OpenInterest: 10, Volume: 100, Premium: 5},
		{Symbol: "HIGH-OI", OpenInterest: 5000, Volume: 10, Premium: 1},
	}
	rec, err := c.RecommendOptionSell(context.Background(), candidates)
	if err != nil {
		t.Fatalf("推荐失败: %v", err)
	}
	if rec.Type != OptionCall {
		t.Fatalf("超出枚举的类型应回落为 call, got %s", rec.Type)
	}
	if rec.Symbol != "AAPL260918C00200000" {
		t.Fatalf("合约代码应大写: %s", rec.Symbol)
	}

	ranked := rankCandidates(candidates)
	if ranked[0].Symbol != "HIGH-OI" {
		t.Fatalf("应优先未平仓量: %+v", ranked)
	}
}

func TestRankCandidatesTruncates(t *testing.T) {
	var cs []OptionContract
	for i := 0; i < 25; i++ {
		cs = append(cs, OptionContract{Symbol: "X", OpenInterest: i})
	}
	ranked := rankCandidates(cs)
	if len(ranked) != optionCandidateLimit {
		t.Fatalf("应截断到 %d, got %d", optionCandidateLimit, len(ranked))
	}
	if ranked[0].OpenInterest != 24 {
		t.Fatalf("应降序排列: %+v", ranked[0])
	}
}
