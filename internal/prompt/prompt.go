// Package prompt renders fetched indicators into the analysis request.
package prompt

import (
	"strings"

	"fx-analyst-bot/internal/types"
)

// System is the role-setting preamble sent with every request.
const System = "You're a professional financial analyst."

const header = `You're a Forex analyst. For each pair below, give structured intraday setups.

Start your reply with a single JSON object keyed by pair name, exactly one entry per pair, in this shape:
{"PAIR": {"trend": "bullish|bearish|neutral", "entry": 0.0, "sl": 0.0, "tp": 0.0, "confidence": "high|medium|low"}}
Use plain numbers for entry, sl and tp. When a value below is ` + types.Unavailable + `, still include the pair and omit the levels you cannot justify.
After the JSON object, write the full forecast per pair: Trend, Entry, SL, TP, Confidence.

`

const footer = "\nRespond only with the JSON object followed by the full forecast, no extra intro or outro."

// Build renders every pair in the given order, once. A pair missing from data
// is rendered with both fields unavailable.
func Build(pairs []types.Pair, data map[string]types.PairIndicator) string {
	var b strings.Builder
	b.WriteString(header)
	for _, p := range pairs {
		ind, ok := data[p.Name]
		if !ok {
			ind = types.PairIndicator{Pair: p}
		}
		b.WriteString(p.Name)
		b.WriteString(": Price=")
		b.WriteString(ind.Price.String())
		b.WriteString(", RSI=")
		b.WriteString(ind.RSI.Fixed(2))
		b.WriteByte('\n')
	}
	b.WriteString(footer)
	return b.String()
}
