package market

import (
	"fmt"
	"strings"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/format"
)

// Signals 由指标推出的信号汇总。
type Signals struct {
	Bullish []string `json:"bullish_signals"`
	Bearish []string `json:"bearish_signals"`
	Overall string   `json:"overall"`
}

// GenerateSignals 把指标快照折算成多空信号列表与总体倾向。
// 需要多空差距拉开 2 个信号以上才脱离 NEUTRAL。
func GenerateSignals(ind Indicators) Signals {
	s := Signals{Overall: "NEUTRAL"}

	switch ind.RSISignal {
	case "OVERSOLD":
		s.Bullish = append(s.Bullish, "RSI_OVERSOLD")
	case "OVERBOUGHT":
		s.Bearish = append(s.Bearish, "RSI_OVERBOUGHT")
	case "BULLISH":
		s.Bullish = append(s.Bullish, "RSI_BULLISH")
	case "BEARISH":
		s.Bearish = append(s.Bearish, "RSI_BEARISH")
	}

	switch ind.MACDSignal {
	case "BULLISH":
		s.Bullish = append(s.Bullish, "MACD_BULLISH")
	case "BEARISH":
		s.Bearish = append(s.Bearish, "MACD_BEARISH")
	}

	if ind.HasSMA20 && ind.HasSMA50 {
		if ind.PriceVsSMA20 == "ABOVE" && ind.PriceVsSMA50 == "ABOVE" {
			s.Bullish = append(s.Bullish, "ABOVE_MOVING_AVERAGES")
		} else if ind.PriceVsSMA20 == "BELOW" && ind.PriceVsSMA50 == "BELOW" {
			s.Bearish = append(s.Bearish, "BELOW_MOVING_AVERAGES")
		}
	}
	switch ind.EMATrend {
	case "BULLISH":
		s.Bullish = append(s.Bullish, "EMA_BULLISH")
	case "BEARISH":
		s.Bearish = append(s.Bearish, "EMA_BEARISH")
	}

	switch ind.BBSignal {
	case "OVERSOLD", "LOWER_BAND":
		s.Bullish = append(s.Bullish, "BB_OVERSOLD")
	case "OVERBOUGHT", "UPPER_BAND":
		s.Bearish = append(s.Bearish, "BB_OVERBOUGHT")
	}

	// 放量只做趋势确认，不单独定方向
	if ind.VolumeSignal == "HIGH" || ind.VolumeSignal == "VERY_HIGH" {
		if len(s.Bullish) > len(s.Bearish) {
			s.Bullish = append(s.Bullish, "HIGH_VOLUME_CONFIRM")
		} else if len(s.Bearish) > len(s.Bullish) {
			s.Bearish = append(s.Bearish, "HIGH_VOLUME_CONFIRM")
		}
	}

	if len(s.Bullish) > len(s.Bearish)+1 {
		s.Overall = "BULLISH"
	} else if len(s.Bearish) > len(s.Bullish)+1 {
		s.Overall = "BEARISH"
	}
	return s
}

// Analysis 单只股票的完整分析结果。
type Analysis struct {
	Symbol       string
	CurrentPrice float64
	Indicators   Indicators
	Signals      Signals
	Err          error
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// FormatForLLM 把一组分析渲染为提示词里的行情区块。
func FormatForLLM(analyses []Analysis) string {
	var b strings.Builder
	divider := strings.Repeat("=", 50)
	for _, a := range analyses {
		if a.Err != nil {
			fmt.Fprintf(&b, "\n%s: Error - %v\n", a.Symbol, a.Err)
			continue
		}
		ind := a.Indicators
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", divider, a.Symbol, divider)
		fmt.Fprintf(&b, "Current Price: $%.2f\n", a.CurrentPrice)
		fmt.Fprintf(&b, "1-Day Change: %s%%\n", format.Signed(ind.Change1D, 2))
		if ind.Has5D {
			fmt.Fprintf(&b, "5-Day Change: %s%%\n", format.Signed(ind.Change5D, 2))
		}
		b.WriteString("\nTechnical Indicators:\n")
		if ind.RSISignal != "" {
			fmt.Fprintf(&b, "  - RSI(14): %.1f (%s)\n", ind.RSI, ind.RSISignal)
		}
		if ind.MACDSignal != "" {
			fmt.Fprintf(&b, "  - MACD: %s\n", ind.MACDSignal)
		}
		if ind.HasSMA20 {
			fmt.Fprintf(&b, "  - SMA(20): $%.2f (Price %s)\n", ind.SMA20, ind.PriceVsSMA20)
		}
		if ind.HasSMA50 {
			fmt.Fprintf(&b, "  - SMA(50): $%.2f (Price %s)\n", ind.SMA50, ind.PriceVsSMA50)
		}
		if ind.EMATrend != "" {
			fmt.Fprintf(&b, "  - EMA Trend: %s\n", ind.EMATrend)
		}
		if ind.HasBB {
			fmt.Fprintf(&b, "  - Bollinger Bands: %s (%%B: %s)\n", ind.BBSignal, format.Float(ind.BBPctB, 4))
		}
		if ind.HasVolume {
			fmt.Fprintf(&b, "  - Volume: %s (%sx average)\n", ind.VolumeSignal, format.Float(ind.VolumeRatio, 2))
		}
		b.WriteString("\nSignal Summary:\n")
		fmt.Fprintf(&b, "  - Overall Signal: %s\n", a.Signals.Overall)
		fmt.Fprintf(&b, "  - Bullish Signals (%d): %s\n", len(a.Signals.Bullish), joinOrNone(a.Signals.Bullish))
		fmt.Fprintf(&b, "  - Bearish Signals (%d): %s\n", len(a.Signals.Bearish), joinOrNone(a.Signals.Bearish))
	}
	return strings.TrimRight(b.String(), "\n")
}
