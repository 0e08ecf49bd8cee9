package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// SymbolProvider 观察列表来源接口
type SymbolProvider interface {
	List(ctx context.Context) ([]string, error)
	Name() string
}

// 默认实现：静态列表
type DefaultProvider struct{ symbols []string }

func NewDefaultProvider(symbols []string) *DefaultProvider {
	return &DefaultProvider{symbols: symbols}
}
func (p *DefaultProvider) Name() string { return "default" }
func (p *DefaultProvider) List(ctx context.Context) ([]string, error) {
	if len(p.symbols) == 0 {
		return nil, errors.New("默认观察列表为空")
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(p.symbols))
	for _, s := range p.symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("标准化后列表为空")
	}
	return out, nil
}

// HTTP 实现：从自定义 API 拉取。支持两种返回格式：
// 1) ["AAPL","MSFT",...]
// 2) {"symbols": ["AAPL","MSFT",...]}
type HTTPProvider struct {
	URL    string
	Client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}
func (p *HTTPProvider) Name() string { return "http" }
func (p *HTTPProvider) List(ctx context.Context) ([]string, error) {
	if p.URL == "" {
		return nil, errors.New("trading.watchlist_url 未配置")
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.New("http 状态异常")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// 尝试解析两种形式
	var arr []string
	if err := json.Unmarshal(body, &arr); err == nil {
		return NewDefaultProvider(arr).List(ctx)
	}
	var obj struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	return NewDefaultProvider(obj.Symbols).List(ctx)
}
