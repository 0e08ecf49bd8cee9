package watchlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestDefaultProviderNormalizes(t *testing.T) {
	p := NewDefaultProvider([]string{" aapl ", "MSFT", "", "msft", "nvda"})
	got, err := p.List(context.Background())
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	want := []string{"AAPL", "MSFT", "NVDA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v, 实际 %v", want, got)
	}
}

func TestDefaultProviderRejectsEmpty(t *testing.T) {
	if _, err := NewDefaultProvider(nil).List(context.Background()); err == nil {
		t.Fatalf("空列表应当报错")
	}
	if _, err := NewDefaultProvider([]string{" ", ""}).List(context.Background()); err == nil {
		t.Fatalf("全空白列表应当报错")
	}
}

func TestHTTPProviderArrayForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["aapl","msft"]`))
	}))
	defer srv.Close()

	got, err := NewHTTPProvider(srv.URL).List(context.Background())
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Fatalf("数组格式解析错误: %v", got)
	}
}

func TestHTTPProviderObjectForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":["spy","qqq"]}`))
	}))
	defer srv.Close()

	got, err := NewHTTPProvider(srv.URL).List(context.Background())
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"SPY", "QQQ"}) {
		t.Fatalf("对象格式解析错误: %v", got)
	}
}

func TestHTTPProviderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewHTTPProvider(srv.URL).List(context.Background()); err == nil {
		t.Fatalf("非 2xx 应当报错")
	}
}
