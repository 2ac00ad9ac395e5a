// Package headlines scrapes recent market headlines from a configured news page.
package headlines

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source describes one news page and the CSS selectors of its article list.
type Source struct {
	Name      string
	URL       string
	Container string
	Title     string
	Link      string
}

type Scraper struct {
	source  Source
	max     int
	timeout time.Duration
}

var _ interfaces.Headlines = (*Scraper)(nil)

func New(source Source, max int, timeout time.Duration) (*Scraper, error) {
	if source.URL == "" || source.Container == "" || source.Title == "" {
		return nil, errors.New("headlines: url, container and title selectors are required")
	}
	if getDomain(source.URL) == "" {
		return nil, fmt.Errorf("headlines: invalid url %q", source.URL)
	}
	if source.Link == "" {
		source.Link = source.Title
	}
	if source.Name == "" {
		source.Name = getDomain(source.URL)
	}
	if max <= 0 {
		max = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{source: source, max: max, timeout: timeout}, nil
}

// Latest returns up to max headlines in page order, skipping duplicates and
// entries without a title.
func (s *Scraper) Latest(ctx context.Context) ([]types.Headline, error) {
	ctx, span := trace.StartSpan(ctx, "headlines.Latest")
	defer span.End()

	var out []types.Headline
	seen := map[string]bool{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(s.source.URL)),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML(s.source.Container, func(e *colly.HTMLElement) {
		if len(out) >= s.max {
			return
		}
		title := firstText(e.DOM, s.source.Title)
		if title == "" || seen[title] {
			return
		}
		seen[title] = true

		link := firstAttr(e.DOM, s.source.Link, "href")
		if link != "" {
			link = e.Request.AbsoluteURL(link)
		}
		out = append(out, types.Headline{Title: title, URL: link, Source: s.source.Name})
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(s.source.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.source.URL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", s.source.Name, visitErr)
	}

	logger.Debug(ctx, "Headlines scraped", "source", s.source.Name, "count", len(out))
	return out, nil
}

// Footer renders headlines as a block appended to the text message, or "".
// escape, when set, makes each line literal text for the message parse mode.
func Footer(items []types.Headline, escape func(string) string) string {
	if len(items) == 0 {
		return ""
	}
	if escape == nil {
		escape = func(s string) string { return s }
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, escape("HEADLINES"))
	for _, h := range items {
		lines = append(lines, escape("- "+h.Title))
	}
	return strings.Join(lines, "\n")
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(sel.Find(selector).First().Text()), " ")
}

func firstAttr(sel *goquery.Selection, selector, attr string) string {
	v, _ := sel.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
