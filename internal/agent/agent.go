// Package agent 驱动整个交易循环：行情 -> 模型建议 -> 过滤/预检 -> 执行。
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/ai"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/analyst"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/executor"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/notify"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/sliceutil"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

// Options 交易循环的运行参数。
type Options struct {
	Watchlist        []string
	AnalysisInterval time.Duration
	MinConfidence    float64
	MaxPositionPct   float64
	Backend          string
	Strategy         string
	// SkipMarketCheck 为 true 时闭市也跑分析（联调用）。
	SkipMarketCheck bool
}

// Agent 交易循环编排器。
type Agent struct {
	broker   broker.Broker
	analyst  *analyst.Analyst
	executor *executor.OrderManager
	store    store.TradeStore
	notifier *notify.Notifier
	opts     Options

	now func() time.Time
}

func New(b broker.Broker, an *analyst.Analyst, om *executor.OrderManager, ts store.TradeStore, nf *notify.Notifier, opts Options) *Agent {
	if opts.AnalysisInterval <= 0 {
		opts.AnalysisInterval = 15 * time.Minute
	}
	opts.Watchlist = sliceutil.Strings(opts.Watchlist)
	return &Agent{
		broker:   b,
		analyst:  an,
		executor: om,
		store:    ts,
		notifier: nf,
		opts:     opts,
		now:      time.Now,
	}
}

// TestConnections 启动前自检：券商连通即可，行情与模型失败只告警。
func (a *Agent) TestConnections(ctx context.Context) error {
	if !a.broker.TestConnection(ctx) {
		return fmt.Errorf("券商连接测试失败")
	}
	logger.Infof("✓ 券商连接正常")
	return nil
}

// RunAnalysisCycle 执行一轮完整分析。
// 单轮内的 panic 被捕获并转成 error，循环不会因单次异常终止。
func (a *Agent) RunAnalysisCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("分析循环 panic: %v", r)
			logger.Errorf("[agent] %v", err)
		}
	}()

	cycle := uuid.NewString()[:8]

	if !a.opts.SkipMarketCheck && !a.broker.IsMarketOpen(ctx) {
		logger.Infof("[agent] (%s) 闭市中，跳过本轮分析", cycle)
		return nil
	}

	account, err := a.broker.GetAccount(ctx)
	if err != nil || account == nil {
		return fmt.Errorf("获取账户失败: %w", err)
	}
	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		logger.Warnf("[agent] 获取持仓失败，按空仓分析: %v", err)
		positions = nil
	}

	resp, err := a.analyst.AnalyzeAndRecommend(ctx, account.Cash, account.PortfolioValue, positions, a.opts.Watchlist)
	if err != nil {
		return fmt.Errorf("模型分析失败: %w", err)
	}
	logger.Infof("[agent] (%s) 模型给出 %d 条建议\n%s", cycle, len(resp.Trades), ai.RenderBlockTable("分析摘要", resp.AnalysisSummary))

	trades := analyst.FilterByConfidence(resp.Trades, a.opts.MinConfidence)
	trades = analyst.ValidateTrades(trades, positions, account.Cash, account.PortfolioValue*a.opts.MaxPositionPct)

	a.recordAnalysis(ctx, resp.AnalysisSummary, resp.RiskAssessment, len(trades))

	if len(trades) == 0 {
		logger.Infof("[agent] (%s) 过滤后无可执行决策", cycle)
		return nil
	}

	results := a.executor.ExecuteTrades(ctx, trades)
	a.reportResults(ctx, results)
	return nil
}

// reportResults 逐条落库并通知。原始决策随结果携带，
// 同一标的同向的多笔决策各自对应一条记录。
func (a *Agent) reportResults(ctx context.Context, results []executor.Result) {
	for _, res := range results {
		td := res.Decision
		if a.store != nil {
			rec := store.TradeRecord{
				Symbol:     res.Symbol,
				Action:     res.Action,
				Quantity:   td.Quantity,
				OrderType:  td.OrderType,
				LimitPrice: td.LimitPrice,
				Status:     res.Status,
				Reasoning:  td.Reasoning,
				Confidence: td.Confidence,
				Timestamp:  a.now(),
			}
			if res.Status == executor.StatusRejected {
				rec.Reasoning = res.Reason
			}
			if res.Order != nil {
				rec.OrderID = res.Order.ID
				rec.FillPrice = res.Order.FilledPrice
			}
			if err := a.store.RecordTrade(ctx, rec); err != nil {
				logger.Warnf("[agent] 交易落库失败: %v", err)
			}
		}
		if a.notifier != nil {
			if res.Status == executor.StatusRejected {
				a.notifier.NotifyRejection(ctx, res)
			} else {
				a.notifier.NotifyTrade(ctx, res)
			}
		}
	}
}

// recordAnalysis 落库失败只记日志。
func (a *Agent) recordAnalysis(ctx context.Context, summary, riskAssessment string, tradeCount int) {
	if a.store == nil {
		return
	}
	err := a.store.RecordAnalysis(ctx, store.AnalysisRecord{
		Summary:        summary,
		RiskAssessment: riskAssessment,
		TradeCount:     tradeCount,
		Timestamp:      a.now(),
	})
	if err != nil {
		logger.Warnf("[agent] 分析落库失败: %v", err)
	}
}

// Start 按固定间隔跑分析，ctx 取消后停止。启动时先跑一轮。
func (a *Agent) Start(ctx context.Context) error {
	logger.Infof("[agent] 启动，分析间隔 %s，观察列表 %d 个标的", a.opts.AnalysisInterval, len(a.opts.Watchlist))
	if a.notifier != nil {
		a.notifier.NotifyAgentStarted(ctx, a.opts.Backend, a.opts.Strategy, len(a.opts.Watchlist))
	}

	if err := a.RunAnalysisCycle(ctx); err != nil {
		logger.Errorf("[agent] 首轮分析失败: %v", err)
	}

	ticker := time.NewTicker(a.opts.AnalysisInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("[agent] 收到停止信号")
			if a.notifier != nil {
				a.notifier.NotifyAgentStopped(context.Background(), ctx.Err().Error())
			}
			a.broker.Disconnect()
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunAnalysisCycle(ctx); err != nil {
				logger.Errorf("[agent] 本轮分析失败: %v", err)
			}
		}
	}
}
