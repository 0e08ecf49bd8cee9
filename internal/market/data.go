// Package market 拉取行情、计算技术指标并汇总为模型可读的分析文本。
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Bar 一根日 K。
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// DataClient 行情数据 REST 客户端。
type DataClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	secretKey  string
}

func NewDataClient(dataURL, apiKey, secretKey string) (*DataClient, error) {
	raw := strings.TrimSpace(dataURL)
	if raw == "" {
		return nil, fmt.Errorf("data_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 data_url 失败: %w", err)
	}
	return &DataClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     strings.TrimSpace(apiKey),
		secretKey:  strings.TrimSpace(secretKey),
	}, nil
}

func (c *DataClient) doRequest(ctx context.Context, path string, query url.Values, out any) error {
	rel, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("解析路径失败: %w", err)
	}
	endpoint := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用行情接口失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("行情接口返回错误(%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析行情响应失败: %w", err)
	}
	return nil
}

// DailyBars 拉取最近 days 天的日线。
func (c *DataClient) DailyBars(ctx context.Context, symbol string, days int) ([]Bar, error) {
	if days <= 0 {
		days = 60
	}
	q := url.Values{}
	q.Set("timeframe", "1Day")
	// 多留余量覆盖周末与假日
	q.Set("start", time.Now().UTC().AddDate(0, 0, -(days*7/5+10)).Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(days))
	q.Set("adjustment", "split")

	var r struct {
		Bars []Bar `json:"bars"`
	}
	if err := c.doRequest(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/bars", q, &r); err != nil {
		return nil, err
	}
	return r.Bars, nil
}

// LatestPrice 最近一笔成交价。
func (c *DataClient) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var r struct {
		Trade struct {
			Price float64 `json:"p"`
		} `json:"trade"`
	}
	if err := c.doRequest(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/trades/latest", nil, &r); err != nil {
		return 0, err
	}
	if r.Trade.Price <= 0 {
		return 0, fmt.Errorf("%s 无最新成交价", symbol)
	}
	return r.Trade.Price, nil
}
