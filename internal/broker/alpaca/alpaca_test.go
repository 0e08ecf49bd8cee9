package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestBackend(t *testing.T, handler http.Handler) (*Alpaca, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a, err := New(srv.URL, "key", "secret")
	if err != nil {
		t.Fatalf("构造后端失败: %v", err)
	}
	return a, srv
}

func TestGetAccountNormalizesStringNumbers(t *testing.T) {
	a, _ := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/account" {
			t.Fatalf("意外路径: %s", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			t.Fatalf("缺少鉴权头")
		}
		w.Write([]byte(`{"id":"acct-1","cash":"25000.50","buying_power":"50001.00","portfolio_value":"31500.25","equity":"31500.25","last_equity":"31000.00"}`))
	}))

	acct, err := a.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	if acct.Cash != 25000.50 || acct.PortfolioValue != 31500.25 {
		t.Fatalf("字符串数值未正确转换: %+v", acct)
	}
	if acct.ID != "acct-1" || acct.LastEquity != 31000.00 {
		t.Fatalf("账户字段缺失: %+v", acct)
	}
}

func TestGetPositionNotFoundIsNotError(t *testing.T) {
	a, _ := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":40410000,"message":"position does not exist"}`))
	}))

	p, err := a.GetPosition(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("404 应视为无持仓而不是错误: %v", err)
	}
	if p != nil {
		t.Fatalf("无持仓应返回 nil, got %+v", p)
	}
}

func TestPlaceLimitOrderPayloadAndNormalization(t *testing.T) {
	a, _ := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Fatalf("意外请求: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("请求体不是 JSON: %v", err)
		}
		if req["type"] != "limit" || req["qty"] != "10" || req["limit_price"] != "182.50" {
			t.Fatalf("限价单字段不对: %v", req)
		}
		if req["time_in_force"] != "day" {
			t.Fatalf("应使用 day 有效期: %v", req)
		}
		if req["client_order_id"] == "" {
			t.Fatalf("缺少 client_order_id")
		}
		w.Write([]byte(`{"id":"ord-1","symbol":"AAPL","side":"BUY","qty":"10","type":"LIMIT","status":"NEW","limit_price":"182.5","filled_qty":"0","filled_avg_price":null,"created_at":"2026-08-28T14:35:00Z"}`))
	}))

	o, err := a.PlaceLimitOrder(context.Background(), "AAPL", 10, "buy", 182.50)
	if err != nil {
		t.Fatalf("下单失败: %v", err)
	}
	if o.Status != "new" || o.OrderType != "limit" || o.Side != "buy" {
		t.Fatalf("状态/类型应统一为小写: %+v", o)
	}
	if o.LimitPrice == nil || *o.LimitPrice != 182.5 {
		t.Fatalf("限价解析不对: %+v", o)
	}
	if o.FilledPrice != nil {
		t.Fatalf("未成交时 filled_price 应为 nil")
	}
}

func TestIsMarketOpenFailSoft(t *testing.T) {
	a, srv := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	if a.IsMarketOpen(context.Background()) {
		t.Fatalf("查询失败时应按闭市处理")
	}
}
