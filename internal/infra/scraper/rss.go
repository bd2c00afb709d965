package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
)

// FeedFetcher reads RSS, Atom and JSON feeds with gofeed.
type FeedFetcher struct {
	get *getter
	cfg Config
}

// NewFeedFetcher builds a FeedFetcher. A nil client gets NewHTTPClient.
func NewFeedFetcher(client *http.Client, cfg Config) *FeedFetcher {
	cfg = cfg.withDefaults()
	return &FeedFetcher{
		get: newGetter(client, cfg, circuitbreaker.FeedConfig(), retry.FeedConfig()),
		cfg: cfg,
	}
}

// Fetch downloads and parses src.URL. Entries missing a title or link are
// skipped; a feed with no usable entry is not an error.
func (f *FeedFetcher) Fetch(ctx context.Context, src entity.Source) ([]entity.Article, error) {
	pg, err := f.get.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(pg.body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := f.cfg.Now()
	articles := make([]entity.Article, 0, len(feed.Items))
	for i, it := range feed.Items {
		if it == nil {
			continue
		}
		title := stripHTML(it.Title)
		link, ok := resolve(pg.url, it.Link)
		if title == "" || !ok {
			slog.Debug("skipping feed entry",
				slog.String("source_id", src.ID),
				slog.Int("index", i))
			continue
		}

		summary := stripHTML(it.Description)
		if summary == "" {
			summary = stripHTML(it.Content)
		}

		articles = append(articles, entity.NewArticle(src, title, link, summary, publishedAt(it, now)))
	}
	return articles, nil
}

func publishedAt(it *gofeed.Item, now time.Time) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return *it.PublishedParsed
	case it.UpdatedParsed != nil:
		return *it.UpdatedParsed
	default:
		return now
	}
}
