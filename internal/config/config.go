package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（与规划一致，保留必要字段，便于后续扩展）
type Config struct {
	App struct {
		Env      string `toml:"env"`
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	Broker struct {
		// Backend: alpaca | ibgw
		Backend string `toml:"backend"`

		Alpaca struct {
			APIKey    string `toml:"api_key"`
			SecretKey string `toml:"secret_key"`
			BaseURL   string `toml:"base_url"` // 纸面交易域名，默认 paper-api
			DataURL   string `toml:"data_url"`
		} `toml:"alpaca"`

		IBGW struct {
			Host                  string `toml:"host"`
			Port                  int    `toml:"port"`
			ClientID              int    `toml:"client_id"` // 0 表示从保留区间随机取
			ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
			SettleWaitSeconds     int    `toml:"settle_wait_seconds"`
		} `toml:"ibgw"`
	} `toml:"broker"`

	AI struct {
		Provider    string  `toml:"provider"` // gemini | openai（OpenAI 兼容接口）
		APIURL      string  `toml:"api_url"`
		APIKey      string  `toml:"api_key"`
		Model       string  `toml:"model"`
		Temperature float64 `toml:"temperature"`
		MaxRetries  int     `toml:"max_retries"`
	} `toml:"ai"`

	Trading struct {
		Watchlist []string `toml:"watchlist"`
		// WatchlistURL 配置后启动时从 HTTP 接口拉取观察列表，失败回退静态列表
		WatchlistURL            string   `toml:"watchlist_url"`
		Strategy                string   `toml:"strategy"` // momentum | mean_reversion | contrarian | balanced
		AnalysisIntervalMinutes int      `toml:"analysis_interval_minutes"`
		MaxPositionPct          float64  `toml:"max_position_pct"`
		MaxDailyLossPct         float64  `toml:"max_daily_loss_pct"`
		MinConfidence           float64  `toml:"min_confidence"`
		StopLossPct             float64  `toml:"stop_loss_pct"`
		TakeProfitPct           float64  `toml:"take_profit_pct"`
		BarLookbackDays         int      `toml:"bar_lookback_days"`
	} `toml:"trading"`

	Notify struct {
		Slack struct {
			Enabled    bool   `toml:"enabled"`
			WebhookURL string `toml:"webhook_url"`
			Channel    string `toml:"channel"`
		} `toml:"slack"`
	} `toml:"notify"`

	Storage struct {
		DBPath string `toml:"db_path"`
	} `toml:"storage"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaultWatchlist = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA",
	"AMD", "INTC", "CRM", "ORCL", "ADBE", "NFLX", "AVGO",
	"JPM", "BAC", "GS", "V", "MA",
	"JNJ", "PFE", "UNH",
	"XOM", "CVX",
	"WMT", "SPY", "QQQ",
}

// 默认值设置
func applyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Broker.Backend == "" {
		c.Broker.Backend = "alpaca"
	}
	if c.Broker.Alpaca.BaseURL == "" {
		c.Broker.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Broker.Alpaca.DataURL == "" {
		c.Broker.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Broker.IBGW.Host == "" {
		c.Broker.IBGW.Host = "127.0.0.1"
	}
	if c.Broker.IBGW.Port <= 0 {
		c.Broker.IBGW.Port = 4002
	}
	if c.Broker.IBGW.ConnectTimeoutSeconds <= 0 {
		c.Broker.IBGW.ConnectTimeoutSeconds = 10
	}
	if c.Broker.IBGW.SettleWaitSeconds <= 0 {
		c.Broker.IBGW.SettleWaitSeconds = 1
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.Temperature <= 0 {
		c.AI.Temperature = 0.3
	}
	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = 3
	}
	if len(c.Trading.Watchlist) == 0 {
		c.Trading.Watchlist = defaultWatchlist
	}
	if c.Trading.Strategy == "" {
		c.Trading.Strategy = "balanced"
	}
	if c.Trading.AnalysisIntervalMinutes <= 0 {
		c.Trading.AnalysisIntervalMinutes = 15
	}
	if c.Trading.MaxPositionPct <= 0 {
		c.Trading.MaxPositionPct = 0.10
	}
	if c.Trading.MaxDailyLossPct <= 0 {
		c.Trading.MaxDailyLossPct = 0.03
	}
	if c.Trading.MinConfidence <= 0 {
		c.Trading.MinConfidence = 0.70
	}
	if c.Trading.StopLossPct <= 0 {
		c.Trading.StopLossPct = 0.05
	}
	if c.Trading.TakeProfitPct <= 0 {
		c.Trading.TakeProfitPct = 0.10
	}
	if c.Trading.BarLookbackDays <= 0 {
		c.Trading.BarLookbackDays = 60
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/trading.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

var validStrategies = map[string]bool{
	"momentum":       true,
	"mean_reversion": true,
	"contrarian":     true,
	"balanced":       true,
}

// 基础校验：凭据缺失在启动时直接报错，而不是跑到半路才失败
func validate(c *Config) error {
	switch c.Broker.Backend {
	case "alpaca":
		if c.Broker.Alpaca.APIKey == "" || c.Broker.Alpaca.SecretKey == "" {
			return fmt.Errorf("broker.alpaca 需要 api_key 与 secret_key")
		}
	case "ibgw":
		// 网关走本地 socket，无凭据
	default:
		return fmt.Errorf("未知 broker.backend: %s（支持 alpaca | ibgw）", c.Broker.Backend)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key 不能为空")
	}
	switch strings.ToLower(c.AI.Provider) {
	case "gemini", "openai":
	default:
		return fmt.Errorf("未知 ai.provider: %s（支持 gemini | openai）", c.AI.Provider)
	}
	if !validStrategies[c.Trading.Strategy] {
		return fmt.Errorf("未知 trading.strategy: %s", c.Trading.Strategy)
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence 需在 [0,1]")
	}
	if c.Trading.MaxPositionPct <= 0 || c.Trading.MaxPositionPct > 1 {
		return fmt.Errorf("trading.max_position_pct 需在 (0,1]")
	}
	if c.Trading.MaxDailyLossPct <= 0 || c.Trading.MaxDailyLossPct > 1 {
		return fmt.Errorf("trading.max_daily_loss_pct 需在 (0,1]")
	}
	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		return fmt.Errorf("已启用 Slack 通知，请提供 webhook_url")
	}
	return nil
}
