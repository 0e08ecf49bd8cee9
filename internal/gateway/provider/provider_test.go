package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestChatCompletionsURLVariants(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/chat/completions", "https://api.openai.com/v1/chat/completions"},
	}
	for _, c := range cases {
		cl := &OpenAIChatClient{BaseURL: c.base}
		if got := cl.chatCompletionsURL(); got != c.want {
			t.Fatalf("base=%q got %q want %q", c.base, got, c.want)
		}
	}
}

func TestGenerateContentURLVariants(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"},
		{"https://generativelanguage.googleapis.com/v1beta", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"},
		{"https://example.com/v1beta/models/gemini-2.5-flash:generateContent", "https://example.com/v1beta/models/gemini-2.5-flash:generateContent"},
	}
	for _, c := range cases {
		cl := &GeminiClient{BaseURL: c.base, Model: "gemini-2.5-flash"}
		if got := cl.generateContentURL(); got != c.want {
			t.Fatalf("base=%q got %q want %q", c.base, got, c.want)
		}
	}
}

func TestOpenAIBodyRequestsJSONMode(t *testing.T) {
	cl := &OpenAIChatClient{Model: "gpt-4o-mini", Temperature: 0.3}
	body := cl.buildChatBodyBytes(ChatPayload{System: "sys", User: "user", ExpectJSON: true})
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("请求体不是 JSON: %v", err)
	}
	rf, ok := m["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("ExpectJSON 应设置 response_format: %v", m)
	}
	if m["temperature"] != 0.3 {
		t.Fatalf("温度应透传: %v", m["temperature"])
	}
}

func TestOpenAICallRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	cl := &OpenAIChatClient{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 2}
	out, err := cl.Call(context.Background(), ChatPayload{User: "hi"})
	if err != nil {
		t.Fatalf("503 后重试应成功: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("响应内容不对: %q", out)
	}
	if calls.Load() != 2 {
		t.Fatalf("期望 2 次调用, got %d", calls.Load())
	}
}

func TestOpenAICallDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	}))
	defer srv.Close()

	cl := &OpenAIChatClient{BaseURL: srv.URL, Model: "m", MaxRetries: 3}
	if _, err := cl.Call(context.Background(), ChatPayload{User: "hi"}); err == nil {
		t.Fatalf("400 应直接失败")
	}
	if calls.Load() != 1 {
		t.Fatalf("400 不应重试, 调用 %d 次", calls.Load())
	}
}

func TestFactorySelectsProvider(t *testing.T) {
	p, err := New(Cfg{Provider: "gemini", APIKey: "k", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("gemini 工厂失败: %v", err)
	}
	if _, ok := p.(*GeminiClient); !ok {
		t.Fatalf("应返回 GeminiClient")
	}
	if _, err := New(Cfg{Provider: "claude"}); err == nil {
		t.Fatalf("未知提供方应报错")
	}
}
