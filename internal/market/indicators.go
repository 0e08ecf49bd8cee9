package market

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// 指标判读阈值，与提示词中的口径一致。
const (
	rsiPeriod      = 14
	smaShortPeriod = 20
	smaLongPeriod  = 50
	emaFastPeriod  = 12
	emaSlowPeriod  = 26
	bbPeriod       = 20
	bbStdDev       = 2.0
	volumeWindow   = 20
)

// Indicators 单只股票的指标快照。缺数据的字段保持零值并由 Has* 标记。
type Indicators struct {
	RSI       float64
	RSISignal string

	MACDSignal string

	SMA20        float64
	PriceVsSMA20 string
	HasSMA20     bool
	SMA50        float64
	PriceVsSMA50 string
	HasSMA50     bool
	EMATrend     string

	BBPctB   float64
	BBSignal string
	HasBB    bool

	VolumeRatio  float64
	VolumeSignal string
	HasVolume    bool

	Change1D float64
	Change5D float64
	Has5D    bool
}

func lastValid(vals []float64) (float64, bool) {
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) && vals[i] != 0 {
			return vals[i], true
		}
	}
	return 0, false
}

// ComputeIndicators 在日线序列上计算全部启用的指标。
// 序列太短时相关指标跳过，不报错。
func ComputeIndicators(bars []Bar) Indicators {
	var ind Indicators
	if len(bars) < 2 {
		return ind
	}
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	price := closes[len(closes)-1]

	if len(closes) > rsiPeriod {
		if rsi, ok := lastValid(talib.Rsi(closes, rsiPeriod)); ok {
			ind.RSI = rsi
			ind.RSISignal = interpretRSI(rsi)
		}
	}

	if len(closes) > emaSlowPeriod+8 {
		macdLine, signalLine, hist := talib.Macd(closes, emaFastPeriod, emaSlowPeriod, 9)
		m := macdLine[len(macdLine)-1]
		s := signalLine[len(signalLine)-1]
		h := hist[len(hist)-1]
		switch {
		case m > s && h > 0:
			ind.MACDSignal = "BULLISH"
		case m < s && h < 0:
			ind.MACDSignal = "BEARISH"
		default:
			ind.MACDSignal = "NEUTRAL"
		}
	}

	if len(closes) >= smaShortPeriod {
		if v, ok := lastValid(talib.Sma(closes, smaShortPeriod)); ok {
			ind.SMA20, ind.HasSMA20 = v, true
			ind.PriceVsSMA20 = aboveBelow(price, v)
		}
	}
	if len(closes) >= smaLongPeriod {
		if v, ok := lastValid(talib.Sma(closes, smaLongPeriod)); ok {
			ind.SMA50, ind.HasSMA50 = v, true
			ind.PriceVsSMA50 = aboveBelow(price, v)
		}
	}
	if len(closes) >= emaSlowPeriod {
		fast, okF := lastValid(talib.Ema(closes, emaFastPeriod))
		slow, okS := lastValid(talib.Ema(closes, emaSlowPeriod))
		if okF && okS {
			if fast > slow {
				ind.EMATrend = "BULLISH"
			} else {
				ind.EMATrend = "BEARISH"
			}
		}
	}

	if len(closes) >= bbPeriod {
		upper, _, lower := talib.BBands(closes, bbPeriod, bbStdDev, bbStdDev, talib.SMA)
		u := upper[len(upper)-1]
		l := lower[len(lower)-1]
		if u > l {
			pctB := (price - l) / (u - l)
			ind.BBPctB, ind.HasBB = pctB, true
			ind.BBSignal = interpretBB(pctB)
		}
	}

	if len(volumes) >= volumeWindow {
		var sum float64
		for _, v := range volumes[len(volumes)-volumeWindow:] {
			sum += v
		}
		avg := sum / volumeWindow
		if avg > 0 {
			ratio := volumes[len(volumes)-1] / avg
			ind.VolumeRatio, ind.HasVolume = ratio, true
			ind.VolumeSignal = interpretVolume(ratio)
		}
	}

	prev := closes[len(closes)-2]
	if prev > 0 {
		ind.Change1D = (price - prev) / prev * 100
	}
	if len(closes) >= 6 {
		p5 := closes[len(closes)-6]
		if p5 > 0 {
			ind.Change5D = (price - p5) / p5 * 100
			ind.Has5D = true
		}
	}
	return ind
}

func interpretRSI(rsi float64) string {
	switch {
	case rsi >= 70:
		return "OVERBOUGHT"
	case rsi <= 30:
		return "OVERSOLD"
	case rsi >= 60:
		return "BULLISH"
	case rsi <= 40:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

func interpretBB(pctB float64) string {
	switch {
	case pctB >= 1:
		return "OVERBOUGHT"
	case pctB <= 0:
		return "OVERSOLD"
	case pctB > 0.8:
		return "UPPER_BAND"
	case pctB < 0.2:
		return "LOWER_BAND"
	default:
		return "NEUTRAL"
	}
}

func interpretVolume(ratio float64) string {
	switch {
	case ratio > 2:
		return "VERY_HIGH"
	case ratio > 1.5:
		return "HIGH"
	case ratio < 0.5:
		return "LOW"
	default:
		return "NORMAL"
	}
}

func aboveBelow(price, ref float64) string {
	if price > ref {
		return "ABOVE"
	}
	return "BELOW"
}
