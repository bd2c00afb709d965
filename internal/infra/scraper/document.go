package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
)

// DefaultSelectors are the listing-block selectors tried in order on
// document sources.
func DefaultSelectors() []string {
	return []string{
		"article",
		".news-item",
		".press-release",
		".insight-item",
		".news-card",
		".article-card",
		".content-item",
		".post-item",
		".press-item",
		".media-item",
		".announcement",
		".update",
	}
}

const summarySelector = "p, .summary, .excerpt, .description"

// DocumentFetcher extracts articles from an HTML listing page.
type DocumentFetcher struct {
	get *getter
	cfg Config
}

// NewDocumentFetcher builds a DocumentFetcher. A nil client gets
// NewHTTPClient.
func NewDocumentFetcher(client *http.Client, cfg Config) *DocumentFetcher {
	cfg = cfg.withDefaults()
	return &DocumentFetcher{
		get: newGetter(client, cfg, circuitbreaker.DocumentConfig(), retry.DocumentConfig()),
		cfg: cfg,
	}
}

func (d *DocumentFetcher) Fetch(ctx context.Context, src entity.Source) ([]entity.Article, error) {
	pg, err := d.get.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pg.body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return d.extract(doc, pg.url, src), nil
}

// extract walks the selectors in order, looking at no more than
// MaxPerSelector elements each. A link is emitted once per page.
func (d *DocumentFetcher) extract(doc *goquery.Document, base *url.URL, src entity.Source) []entity.Article {
	now := d.cfg.Now()
	seen := make(map[string]struct{})
	var articles []entity.Article

	for _, sel := range d.cfg.Selectors {
		doc.Find(sel).EachWithBreak(func(i int, el *goquery.Selection) bool {
			if i >= d.cfg.MaxPerSelector {
				return false
			}
			a, ok := d.parseElement(el, base, src, now)
			if !ok {
				return true
			}
			if _, dup := seen[a.URL]; dup {
				return true
			}
			seen[a.URL] = struct{}{}
			articles = append(articles, a)
			return true
		})
	}
	return articles
}

func (d *DocumentFetcher) parseElement(el *goquery.Selection, base *url.URL, src entity.Source, now time.Time) (entity.Article, bool) {
	titleEl := el.Find("h1, h2, h3, h4").First()
	if titleEl.Length() == 0 {
		titleEl = el.Find("a").First()
	}
	if titleEl.Length() == 0 {
		return entity.Article{}, false
	}
	title := collapse(titleEl.Text())
	if utf8.RuneCountInString(title) < d.cfg.MinTitleLength {
		return entity.Article{}, false
	}

	link, ok := elementLink(el, titleEl, base)
	if !ok {
		return entity.Article{}, false
	}

	summary := collapse(el.Find(summarySelector).First().Text())
	if summary == "" {
		summary = title
	}

	return entity.NewArticle(src, title, link, summary, elementDate(el, now)), true
}

func elementLink(el, titleEl *goquery.Selection, base *url.URL) (string, bool) {
	candidates := []*goquery.Selection{
		el.Find("a[href]").First(),
		titleEl,
		titleEl.Closest("a[href]"),
		el,
	}
	for _, c := range candidates {
		if href, ok := c.Attr("href"); ok {
			if link, ok := resolve(base, href); ok {
				return link, true
			}
		}
	}
	return "", false
}

func elementDate(el *goquery.Selection, now time.Time) time.Time {
	t := el.Find("time").First()
	if t.Length() == 0 {
		return now
	}
	raw, ok := t.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = t.Text()
	}
	parsed, err := dateparse.ParseAny(strings.TrimSpace(raw))
	if err != nil {
		return now
	}
	return parsed
}
