package market

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
)

// 行情接口并发上限，拉满会触发数据源限流。
const fetchConcurrency = 5

// BarSource 行情来源，真实实现为 DataClient。
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, days int) ([]Bar, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Aggregator 按观察列表聚合行情与指标。
type Aggregator struct {
	source       BarSource
	lookbackDays int
}

func NewAggregator(source BarSource, lookbackDays int) *Aggregator {
	if lookbackDays <= 0 {
		lookbackDays = 60
	}
	return &Aggregator{source: source, lookbackDays: lookbackDays}
}

// AnalyzeSymbol 单只股票的拉取与计算。
func (a *Aggregator) AnalyzeSymbol(ctx context.Context, symbol string) Analysis {
	out := Analysis{Symbol: symbol}
	bars, err := a.source.DailyBars(ctx, symbol, a.lookbackDays)
	if err != nil {
		out.Err = err
		return out
	}
	if len(bars) == 0 {
		out.Err = fmt.Errorf("no historical data available for %s", symbol)
		return out
	}
	// 最新成交价拿不到时退回最后收盘价
	price, err := a.source.LatestPrice(ctx, symbol)
	if err != nil || price <= 0 {
		price = bars[len(bars)-1].Close
	}
	out.CurrentPrice = price
	out.Indicators = ComputeIndicators(bars)
	out.Signals = GenerateSignals(out.Indicators)
	return out
}

// AnalyzeWatchlist 并发分析整个观察列表，结果保持入参顺序。
// 单只失败不影响其他标的，错误记录在对应 Analysis.Err。
func (a *Aggregator) AnalyzeWatchlist(ctx context.Context, symbols []string) []Analysis {
	logger.Infof("[market] 分析 %d 只股票", len(symbols))
	results := make([]Analysis, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			results[i] = a.AnalyzeSymbol(gctx, symbol)
			if results[i].Err != nil {
				logger.Warnf("[market] %s 分析失败: %v", symbol, results[i].Err)
			}
			return nil
		})
	}
	// 子任务不返回错误，Wait 仅用于汇合
	_ = g.Wait()
	return results
}
