// Package alert flags pairs worth a second look before the full forecast.
package alert

import (
	"fmt"
	"strings"

	"fx-analyst-bot/internal/types"
)

const (
	KindOverbought     = "overbought"
	KindOversold       = "oversold"
	KindHighConfidence = "high_confidence"
)

type Thresholds struct {
	Overbought float64
	Oversold   float64
}

// Classify walks pairs in order. RSI alerts need a resolved RSI; confidence
// alerts need a parsed setup whose confidence is "high".
func Classify(pairs []types.Pair, data map[string]types.PairIndicator, result types.AnalysisResult, th Thresholds) []types.Alert {
	var out []types.Alert
	for _, p := range pairs {
		if ind, ok := data[p.Name]; ok && ind.RSI.Valid {
			switch {
			case ind.RSI.Value >= th.Overbought:
				out = append(out, types.Alert{
					Pair:    p.Name,
					Kind:    KindOverbought,
					Message: fmt.Sprintf("%s RSI %s is overbought (>= %g)", p.Name, ind.RSI.Fixed(2), th.Overbought),
				})
			case ind.RSI.Value <= th.Oversold:
				out = append(out, types.Alert{
					Pair:    p.Name,
					Kind:    KindOversold,
					Message: fmt.Sprintf("%s RSI %s is oversold (<= %g)", p.Name, ind.RSI.Fixed(2), th.Oversold),
				})
			}
		}
		if s, ok := result.Setup(p); ok && s.Confidence == "high" {
			msg := fmt.Sprintf("%s high-confidence setup", p.Name)
			if s.Trend != "" {
				msg = fmt.Sprintf("%s high-confidence %s setup", p.Name, s.Trend)
			}
			out = append(out, types.Alert{Pair: p.Name, Kind: KindHighConfidence, Message: msg})
		}
	}
	return out
}

// Banner renders alerts as lines to prepend to the text message, or "" when there are none.
func Banner(alerts []types.Alert) string {
	if len(alerts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("ALERTS\n")
	for _, a := range alerts {
		b.WriteString("- ")
		b.WriteString(a.Message)
		b.WriteByte('\n')
	}
	return b.String()
}
