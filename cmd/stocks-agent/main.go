package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/app"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/config"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/portfolio"
)

// 入口程序：
// 1) 加载 TOML 配置
// 2) 组装券商后端、行情聚合、模型客户端、风控与执行器
// 3) 默认进入周期分析循环；也支持单轮/自检/查询模式
func main() {
	var (
		cfgPath     = flag.String("config", "", "配置文件路径（默认 configs/config.toml）")
		testConn    = flag.Bool("test-connection", false, "只做连接自检后退出")
		singleRun   = flag.Bool("single-run", false, "跑一轮分析后退出")
		showFolio   = flag.Bool("portfolio", false, "打印账户与持仓后退出")
		showHistory = flag.Bool("history", false, "打印最近交易记录后退出")
	)
	flag.Parse()

	path := *cfgPath
	if path == "" {
		path = os.Getenv("STOCKS_AGENT_CONFIG")
	}
	if path == "" {
		path = "configs/config.toml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.Infof("✓ 配置加载成功（环境=%s，后端=%s，策略=%s，观察列表=%d）",
		cfg.App.Env, cfg.Broker.Backend, cfg.Trading.Strategy, len(cfg.Trading.Watchlist))

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *testConn:
		os.Exit(runTestConnection(ctx, a))
	case *showFolio:
		os.Exit(runShowPortfolio(ctx, a))
	case *showHistory:
		os.Exit(runShowHistory(ctx, a))
	case *singleRun:
		os.Exit(runSingle(ctx, a))
	}

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}

func runTestConnection(ctx context.Context, a *app.App) int {
	defer a.Close()
	if err := a.Broker().Connect(ctx); err != nil {
		logger.Errorf("⛔ 券商连接失败: %v", err)
		return 1
	}
	defer a.Broker().Disconnect()
	if err := a.Agent().TestConnections(ctx); err != nil {
		logger.Errorf("⛔ 自检失败: %v", err)
		return 1
	}
	logger.Infof("✓ 自检通过")
	return 0
}

func runSingle(ctx context.Context, a *app.App) int {
	defer a.Close()
	if err := a.Broker().Connect(ctx); err != nil {
		logger.Errorf("⛔ 券商连接失败: %v", err)
		return 1
	}
	defer a.Broker().Disconnect()
	if err := a.Agent().RunAnalysisCycle(ctx); err != nil {
		logger.Errorf("⛔ 单轮分析失败: %v", err)
		return 1
	}
	return 0
}

func runShowPortfolio(ctx context.Context, a *app.App) int {
	defer a.Close()
	if err := a.Broker().Connect(ctx); err != nil {
		logger.Errorf("⛔ 券商连接失败: %v", err)
		return 1
	}
	defer a.Broker().Disconnect()
	sum, err := a.Tracker().Current(ctx)
	if err != nil {
		logger.Errorf("⛔ 获取组合失败: %v", err)
		return 1
	}
	fmt.Println(portfolio.RenderSummary(sum))
	fmt.Println(portfolio.RenderPositions(sum.Positions))
	return 0
}

func runShowHistory(ctx context.Context, a *app.App) int {
	defer a.Close()
	trades, err := a.Store().RecentTrades(ctx, 50)
	if err != nil {
		logger.Errorf("⛔ 查询交易记录失败: %v", err)
		return 1
	}
	fmt.Println(portfolio.RenderTradeHistory(trades))
	return 0
}
