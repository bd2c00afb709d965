// Package entity defines the domain types of the collector: sources,
// candidate articles, keyword sets and dedup records.
package entity

import "time"

// Article is a candidate item. Retrieval fills the raw fields; Score,
// Category and Priority are set by the pipeline after classification.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source"`
	Country     string    `json:"country"`
	Language    string    `json:"language"`
	PublishedAt time.Time `json:"published_at"`

	Score    int       `json:"score"`
	Category string    `json:"category"`
	Priority Priority  `json:"priority"`
	Mode     FetchMode `json:"-"`
}

// NewArticle returns a raw article attributed to src.
func NewArticle(src Source, title, url, summary string, publishedAt time.Time) Article {
	return Article{
		Title:       title,
		URL:         url,
		Summary:     summary,
		SourceID:    src.ID,
		SourceName:  src.Name,
		Country:     src.Country,
		Language:    src.Language,
		PublishedAt: publishedAt,
		Priority:    src.Priority,
		Mode:        src.Mode,
	}
}

// SentRecord is what the dedup store keeps for every emitted article.
// Records are written once and never updated.
type SentRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Country     string    `json:"country"`
	Language    string    `json:"language"`
	Category    string    `json:"category"`
	Priority    Priority  `json:"priority"`
	Score       int       `json:"score"`
	SentAt      time.Time `json:"sent_at"`
}

// SentStats aggregates dedup records over a period.
type SentStats struct {
	Total      int            `json:"total"`
	ByCountry  map[string]int `json:"by_country"`
	BySource   map[string]int `json:"by_source"`
	ByCategory map[string]int `json:"by_category"`
	ByBand     map[string]int `json:"by_score_band"`
}

// NewSentStats returns empty stats with initialized maps.
func NewSentStats() *SentStats {
	return &SentStats{
		ByCountry:  map[string]int{},
		BySource:   map[string]int{},
		ByCategory: map[string]int{},
		ByBand:     map[string]int{},
	}
}

// Add counts one record.
func (s *SentStats) Add(r SentRecord) {
	s.Total++
	s.ByCountry[r.Country]++
	s.BySource[r.Source]++
	s.ByCategory[r.Category]++
	s.ByBand[ScoreBand(r.Score)]++
}

// ScoreBand buckets a score for reporting.
func ScoreBand(score int) string {
	switch {
	case score >= 90:
		return "90+"
	case score >= 80:
		return "80-89"
	case score >= 70:
		return "70-79"
	default:
		return "<70"
	}
}
