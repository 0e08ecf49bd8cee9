package format

import (
	"fmt"
	"strings"
)

func Float(val float64, decimals int) string {
	if decimals < 0 {
		decimals = 4
	}
	out := fmt.Sprintf("%.*f", decimals, val)
	out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	if out == "" {
		return "0"
	}
	return out
}

// Money renders a dollar amount with two decimals and thousands grouping.
func Money(val float64) string {
	neg := val < 0
	if neg {
		val = -val
	}
	s := fmt.Sprintf("%.2f", val)
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

// Signed prefixes positive values with "+", for P/L columns.
func Signed(val float64, decimals int) string {
	if val > 0 {
		return "+" + fmt.Sprintf("%.*f", decimals, val)
	}
	return fmt.Sprintf("%.*f", decimals, val)
}
