// Package telegram delivers the analysis text and chart images through the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"fx-analyst-bot/internal/api"
	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	// MaxMessageLen is the Bot API limit for one sendMessage text.
	MaxMessageLen = 4096
	maxCaptionLen = 1024
)

type Options struct {
	BaseURL       string
	Token         string
	ChatID        string
	ParseMode     string
	MaxMessageLen int
	Timeout       time.Duration
}

// Notifier sends messages via the Telegram Bot API.
type Notifier struct {
	client *api.Client
	opts   Options
}

var _ interfaces.Notifier = (*Notifier)(nil)

func New(opts Options) (*Notifier, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxMessageLen <= 0 || opts.MaxMessageLen > MaxMessageLen {
		opts.MaxMessageLen = MaxMessageLen
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	// the token lives in the base URL so logged paths never carry it
	client := api.NewClient(
		api.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/bot"+opts.Token),
		api.WithTimeout(opts.Timeout),
		api.WithLogging(true),
	)
	return &Notifier{client: client, opts: opts}, nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText delivers text, split into several messages when it exceeds the
// configured length. The first failing part aborts the rest.
func (n *Notifier) SendText(ctx context.Context, text string) error {
	parts := Split(text, n.opts.MaxMessageLen)
	for i, part := range parts {
		if err := n.sendMessage(ctx, part); err != nil {
			if len(parts) > 1 {
				return fmt.Errorf("message part %d/%d: %w", i+1, len(parts), err)
			}
			return err
		}
	}
	return nil
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	ctx, span := trace.StartSpan(ctx, "telegram.sendMessage")
	defer span.End()
	span.SetAttributes(attribute.Int("text_len", len(text)))

	resp, err := n.client.POST(ctx, "/sendMessage", sendMessageRequest{
		ChatID:    n.opts.ChatID,
		Text:      text,
		ParseMode: n.opts.ParseMode,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return checkResponse(resp, "sendMessage")
}

// SendImage uploads the chart file as a photo. The caller still owns the
// artifact and releases it afterwards.
func (n *Notifier) SendImage(ctx context.Context, chart *types.ChartArtifact, caption string) error {
	ctx, span := trace.StartSpan(ctx, "telegram.sendPhoto")
	defer span.End()

	if chart == nil || chart.Path == "" {
		return errors.New("telegram sendPhoto: no chart file")
	}
	span.SetAttributes(attribute.String("pair", chart.Pair.Name))

	f, err := os.Open(chart.Path)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	defer f.Close()

	fields := map[string]string{"chat_id": n.opts.ChatID}
	if caption != "" {
		fields["caption"] = truncate(caption, maxCaptionLen)
		if n.opts.ParseMode != "" {
			fields["parse_mode"] = n.opts.ParseMode
		}
	}

	resp, err := n.client.Upload(ctx, "/sendPhoto", fields, "photo", filepath.Base(chart.Path), f)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	if err := checkResponse(resp, "sendPhoto"); err != nil {
		return err
	}
	logger.Debug(ctx, "Chart delivered", "pair", chart.Pair.Name, "file", filepath.Base(chart.Path))
	return nil
}

var (
	markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

	markdownV2Escaper = strings.NewReplacer(
		`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
		"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`,
		"|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
	)
)

// Escape makes s literal text under parseMode, so untrusted text such as a
// scraped headline cannot open an entity the Bot API then fails to parse.
func Escape(parseMode, s string) string {
	switch strings.ToLower(parseMode) {
	case "markdown":
		return markdownEscaper.Replace(s)
	case "markdownv2":
		return markdownV2Escaper.Replace(s)
	case "html":
		return html.EscapeString(s)
	default:
		return s
	}
}

func checkResponse(resp *api.Response, method string) error {
	var r apiResponse
	if err := resp.ParseJSON(&r); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !r.OK {
		return fmt.Errorf("telegram %s: %s", method, r.Description)
	}
	return nil
}

// Split breaks text into chunks of at most max UTF-16 code units, the unit
// Telegram counts message length in. It cuts on line boundaries. A single
// line longer than max is cut at a space that leaves no Markdown entity open,
// at any space when there is none, and mid-word as a last resort.
func Split(text string, max int) []string {
	if max <= 0 || textLen(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := textLen(line)
		if curLen+n > max {
			flush()
		}
		for n > max {
			head, rest := cutLine(line, max)
			chunks = append(chunks, strings.TrimRight(head, " "))
			line, n = rest, textLen(rest)
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

// textLen is the length of s in UTF-16 code units.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += unitLen(r)
	}
	return n
}

func unitLen(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// hardCut is the byte offset of the longest prefix of s within max units.
// It always keeps at least one rune so callers make progress.
func hardCut(s string, max int) int {
	units := 0
	for pos, r := range s {
		units += unitLen(r)
		if units > max {
			if pos == 0 {
				_, size := utf8.DecodeRuneInString(s)
				return size
			}
			return pos
		}
	}
	return len(s)
}

// cutLine splits a line longer than max units into a head that fits and the rest.
func cutLine(s string, max int) (string, string) {
	limit := hardCut(s, max)

	balancedCut, anyCut := -1, -1
	var bold, italic, code, escaped bool
	link := 0
	for i := 0; i < limit; i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '`':
			code = !code
		case code:
		case c == '*':
			bold = !bold
		case c == '_':
			italic = !italic
		case c == '[':
			link++
		case c == ']' && link > 0:
			link--
		case c == ' ':
			anyCut = i + 1
			if !bold && !italic && link == 0 {
				balancedCut = i + 1
			}
		}
	}

	cut := limit
	switch {
	case balancedCut > 0:
		cut = balancedCut
	case anyCut > 0:
		cut = anyCut
	}
	return s[:cut], s[cut:]
}

// truncate shortens s to at most max UTF-16 code units.
func truncate(s string, max int) string {
	if textLen(s) <= max {
		return s
	}
	return s[:hardCut(s, max)]
}
