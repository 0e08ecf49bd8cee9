package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/agent"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/ai"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/analyst"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker/factory"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/config"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/executor"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/gateway/provider"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/market"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/notify"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/portfolio"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/prompt"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/risk"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
	stockhttp "github.com/kittureddy2000/samaanai-stocks-sub000/internal/transport/http"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/watchlist"
)

// App 负责应用级编排：加载配置→初始化依赖→启动交易循环与状态接口。
type App struct {
	cfg      *config.Config
	brk      broker.Broker
	agent    *agent.Agent
	tracker  *portfolio.Tracker
	orders   *executor.OrderManager
	risk     *risk.Manager
	store    *store.Store
	httpSrv  *stockhttp.Server
	notifier *notify.Notifier
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// AppBuilder 按依赖顺序逐层组装 App。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 构建全部依赖。任何一层失败都直接返回错误。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	brk, err := factory.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化券商后端失败: %w", err)
	}
	logger.Infof("✓ 券商后端: %s", cfg.Broker.Backend)

	client, err := buildAIClient(cfg)
	if err != nil {
		return nil, err
	}

	dataClient, err := market.NewDataClient(cfg.Broker.Alpaca.DataURL, cfg.Broker.Alpaca.APIKey, cfg.Broker.Alpaca.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
	}
	aggregator := market.NewAggregator(dataClient, cfg.Trading.BarLookbackDays)

	an := analyst.New(client, aggregator, cfg.Trading.Strategy, prompt.Thresholds{
		MaxPositionPct: cfg.Trading.MaxPositionPct,
		MinConfidence:  cfg.Trading.MinConfidence,
		StopLossPct:    cfg.Trading.StopLossPct,
		TakeProfitPct:  cfg.Trading.TakeProfitPct,
	})

	rm := risk.NewManager(risk.Limits{
		MaxPositionPct:  cfg.Trading.MaxPositionPct,
		MaxDailyLossPct: cfg.Trading.MaxDailyLossPct,
		MinConfidence:   cfg.Trading.MinConfidence,
	})
	om := executor.NewOrderManager(brk, rm)

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	logger.Infof("✓ 交易记录写入 %s", cfg.Storage.DBPath)

	var notifier *notify.Notifier
	if cfg.Notify.Slack.Enabled {
		notifier = notify.New(cfg.Notify.Slack.WebhookURL, cfg.Notify.Slack.Channel)
		logger.Infof("✓ Slack 通知已启用")
	}

	tracker := portfolio.NewTracker(brk, st)

	symbols := resolveWatchlist(ctx, cfg)

	ag := agent.New(brk, an, om, st, notifier, agent.Options{
		Watchlist:        symbols,
		AnalysisInterval: time.Duration(cfg.Trading.AnalysisIntervalMinutes) * time.Minute,
		MinConfidence:    cfg.Trading.MinConfidence,
		MaxPositionPct:   cfg.Trading.MaxPositionPct,
		Backend:          cfg.Broker.Backend,
		Strategy:         cfg.Trading.Strategy,
	})

	var httpSrv *stockhttp.Server
	if cfg.HTTP.Enabled {
		httpSrv = stockhttp.NewServer(cfg.HTTP.Addr, tracker, rm, om, st, notifier)
	}

	return &App{
		cfg:      cfg,
		brk:      brk,
		agent:    ag,
		tracker:  tracker,
		orders:   om,
		risk:     rm,
		store:    st,
		httpSrv:  httpSrv,
		notifier: notifier,
	}, nil
}

// resolveWatchlist 优先走 HTTP 来源，失败回退配置里的静态列表。
func resolveWatchlist(ctx context.Context, cfg *config.Config) []string {
	if cfg.Trading.WatchlistURL != "" {
		if syms, err := watchlist.NewHTTPProvider(cfg.Trading.WatchlistURL).List(ctx); err == nil {
			logger.Infof("✓ 观察列表来自 %s，共 %d 个标的", cfg.Trading.WatchlistURL, len(syms))
			return syms
		} else {
			logger.Warnf("拉取观察列表失败，回退静态列表: %v", err)
		}
	}
	syms, err := watchlist.NewDefaultProvider(cfg.Trading.Watchlist).List(ctx)
	if err != nil {
		return cfg.Trading.Watchlist
	}
	return syms
}

func buildAIClient(cfg *config.Config) (*ai.Client, error) {
	p, err := provider.New(provider.Cfg{
		Provider:    cfg.AI.Provider,
		APIURL:      cfg.AI.APIURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     120 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化模型提供方失败: %w", err)
	}
	logger.Infof("✓ AI 模型: %s", p.ID())
	return ai.NewClient(p, cfg.AI.MaxRetries), nil
}

// Run 启动交易循环与状态接口，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.brk.Connect(ctx); err != nil {
		return fmt.Errorf("连接券商失败: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(); err != nil && ctx.Err() == nil {
				logger.Warnf("状态接口停止: %v", err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		defer a.Close()
		return a.agent.Start(ctx)
	})

	return group.Wait()
}

// Close 释放持久化与连接资源。
func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Agent 暴露交易循环，单轮模式用。
func (a *App) Agent() *agent.Agent { return a.agent }

// Tracker 暴露组合跟踪器，CLI 展示用。
func (a *App) Tracker() *portfolio.Tracker { return a.tracker }

// Store 暴露交易存储，CLI 展示用。
func (a *App) Store() *store.Store { return a.store }

// Broker 暴露券商后端。
func (a *App) Broker() broker.Broker { return a.brk }
