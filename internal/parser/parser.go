// Package parser splits an analysis response into per-pair trade setups and
// the prose meant for people.
//
// The response is expected to open with a JSON object keyed by pair name:
//
//	{"EUR/USD": {"trend": "bullish", "entry": 1.09, "sl": 1.085, "tp": 1.1, "confidence": "high"}}
//
// followed by free text. Anything that does not fit degrades to an empty set
// of setups; the text is always kept.
package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"fx-analyst-bot/internal/types"
)

var numericString = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Parse never fails. Calling it twice on the same input yields the same result.
func Parse(raw string) types.AnalysisResult {
	res := types.AnalysisResult{Setups: map[string]types.TradeSetup{}}

	start, end, setups, ok := findBlock(raw)
	if ok {
		res.Setups = setups
		res.Display = displayAround(raw, start, end)
		return res
	}

	// No usable block. If the response still opens with a brace block, it was
	// meant as the preamble and is not prose.
	if s, e, found := firstBalanced(raw, 0); found && opensResponse(raw, s) {
		res.Display = displayAround(raw, s, e)
		return res
	}

	res.Display = strings.TrimSpace(raw)
	return res
}

// findBlock returns the first balanced brace block that decodes into the
// expected shape. After a rejected candidate the scan resumes just inside it,
// so a valid block nested in an invalid one is still found.
func findBlock(text string) (start, end int, setups map[string]types.TradeSetup, ok bool) {
	pos := 0
	for pos < len(text) {
		s, e, found := firstBalanced(text, pos)
		if !found {
			return 0, 0, nil, false
		}
		// an empty object only counts as the preamble when it opens the response
		if setups, valid := decode(text[s : e+1]); valid && (len(setups) > 0 || opensResponse(text, s)) {
			return s, e, setups, true
		}
		pos = s + 1
	}
	return 0, 0, nil, false
}

func opensResponse(text string, start int) bool {
	return strings.TrimSpace(stripFenceOpen(text[:start])) == ""
}

// firstBalanced finds the first '{' at or after pos that has a matching '}'.
// An opening brace that never closes is passed over so a later, complete
// block can still be found.
func firstBalanced(text string, pos int) (start, end int, ok bool) {
	for i := pos; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if e := matchBrace(text, i); e >= 0 {
			return i, e, true
		}
	}
	return 0, 0, false
}

// matchBrace returns the index of the '}' closing the '{' at start, ignoring
// braces inside JSON strings, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decode accepts a JSON object whose values are objects (null entries are skipped).
func decode(block string) (map[string]types.TradeSetup, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &top); err != nil {
		return nil, false
	}

	out := make(map[string]types.TradeSetup, len(top))
	for key, raw := range top {
		raw = bytes.TrimSpace(raw)
		if bytes.Equal(raw, []byte("null")) {
			continue
		}
		if len(raw) == 0 || raw[0] != '{' {
			return nil, false
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, false
		}
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		out[name] = setupFrom(fields)
	}
	return out, true
}

func setupFrom(fields map[string]json.RawMessage) types.TradeSetup {
	return types.TradeSetup{
		Trend:      label(fields, "trend"),
		Entry:      number(fields, "entry"),
		StopLoss:   number(fields, "sl", "stop_loss"),
		TakeProfit: number(fields, "tp", "take_profit"),
		Confidence: label(fields, "confidence"),
	}
}

// label reads a string field, trimmed and lower-cased. Non-strings are not provided.
func label(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// number reads the first key that holds a finite JSON number or a string that
// is unambiguously one. Everything else is not provided.
func number(fields map[string]json.RawMessage, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if v, ok := toFloat(raw); ok {
			return &v
		}
	}
	return nil
}

func toFloat(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, !math.IsInf(v, 0) && !math.IsNaN(v)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if !numericString.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// displayAround is the prose after the block at [start,end]. When nothing
// follows, the prose before it is used, and failing that the whole response.
func displayAround(raw string, start, end int) string {
	if after := trimBlankLines(stripFenceClose(raw[end+1:])); after != "" {
		return after
	}
	if before := trimBlankLines(stripFenceOpen(raw[:start])); before != "" {
		return before
	}
	return strings.TrimSpace(raw)
}

// stripFenceOpen drops a trailing ``` or ```json left right before the block.
func stripFenceOpen(s string) string {
	t := strings.TrimRight(s, " \t\r\n")
	idx := strings.LastIndex(t, "```")
	if idx < 0 {
		return s
	}
	lang := t[idx+3:]
	if lang != "" && strings.ToLower(lang) != "json" {
		return s
	}
	return t[:idx]
}

// stripFenceClose drops a ``` that closes the fence right after the block.
func stripFenceClose(s string) string {
	t := strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(t, "```") {
		return s
	}
	return t[3:]
}

// trimBlankLines removes leading blank lines and trailing whitespace but
// keeps the indentation of the first line.
func trimBlankLines(s string) string {
	for {
		line, rest, found := strings.Cut(s, "\n")
		if strings.TrimSpace(line) != "" {
			break
		}
		if !found {
			return ""
		}
		s = rest
	}
	return strings.TrimRight(s, " \t\r\n")
}
