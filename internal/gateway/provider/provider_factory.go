package provider

import (
	"fmt"
	"strings"
	"time"
)

// Cfg 工厂入参，字段与配置文件的 [ai] 段一一对应。
type Cfg struct {
	Provider    string
	APIURL      string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// New 按配置构造模型提供方。
func New(cfg Cfg) (ModelProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		return &GeminiClient{
			BaseURL:     cfg.APIURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, nil
	case "openai":
		return &OpenAIChatClient{
			BaseURL:     cfg.APIURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("未知模型提供方: %q", cfg.Provider)
	}
}
