package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
)

type GeminiClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

func (c *GeminiClient) ID() string { return "gemini:" + c.Model }

func (c *GeminiClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	ctx = ensureCtx(ctx)
	timeout := c.ensureTimeout()
	maxRetries := normalizeRetries(c.MaxRetries)
	url := c.generateContentURL()

	bodyBytes := c.buildGeminiBodyBytes(payload)
	logger.LogLLMPayload(c.Model, string(bodyBytes))

	httpc := &http.Client{Timeout: timeout}
	return c.doGenerateContent(ctx, httpc, url, bodyBytes, maxRetries)
}

func (c *GeminiClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c.Timeout
}

func (c *GeminiClient) generateContentURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	lower := strings.ToLower(base)
	if strings.Contains(lower, ":generatecontent") {
		return base
	}
	if strings.HasSuffix(lower, "/models") {
		return base + "/" + c.Model + ":generateContent"
	}
	if strings.Contains(lower, "/models/") {
		return base + ":generateContent"
	}
	if strings.HasSuffix(lower, "/v1beta") {
		return base + "/models/" + c.Model + ":generateContent"
	}
	return base + "/v1beta/models/" + c.Model + ":generateContent"
}

func (c *GeminiClient) buildGeminiBodyBytes(payload ChatPayload) []byte {
	temp := c.Temperature
	if temp <= 0 {
		temp = 0.3
	}
	body := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": []any{map[string]any{"text": payload.User}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     temp,
			"maxOutputTokens": ensurePayloadTokens(payload.MaxTokens),
		},
	}
	if strings.TrimSpace(payload.System) != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": payload.System}},
		}
	}
	if payload.ExpectJSON {
		cfg := body["generationConfig"].(map[string]any)
		cfg["responseMimeType"] = "application/json"
	}
	b, _ := json.Marshal(body)
	return b
}

func (c *GeminiClient) doGenerateContent(ctx context.Context, httpc *http.Client, url string, body []byte, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[AI] 请求: POST %s headers=%v", url, redactSecrets(c.headers()))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		for k, v := range c.headers() {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}

		if resp.StatusCode/100 == 2 {
			content, err := decodeGeminiContent(resp)
			if err != nil {
				lastErr = err
				break
			}
			return content, nil
		}

		msg := parseGeminiError(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), attempt)
			time.Sleep(wait)
			continue
		}
		break
	}
	return "", lastErr
}

func decodeGeminiContent(resp *http.Response) (string, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("empty candidates")
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		if strings.TrimSpace(part.Text) != "" {
			b.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("empty text content")
	}
	return out, nil
}

func (c *GeminiClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		out["x-goog-api-key"] = c.APIKey
	}
	return out
}

func parseGeminiError(resp *http.Response) string {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil && strings.TrimSpace(eresp.Error.Message) != "" {
		if eresp.Error.Status != "" {
			return eresp.Error.Status + ": " + eresp.Error.Message
		}
		return eresp.Error.Message
	}
	return resp.Status
}
