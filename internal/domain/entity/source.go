package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Priority is the tier of a source. It is the primary sort key of the
// final shortlist.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort weight of the tier. Unknown tiers rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 100
	case PriorityLow:
		return 10
	default:
		return 50
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// FetchMode selects the retrieval strategy of a source.
type FetchMode string

const (
	ModeFeed     FetchMode = "feed"
	ModeDocument FetchMode = "document"
)

func (m FetchMode) Valid() bool {
	return m == ModeFeed || m == ModeDocument
}

// Category is the report category derived from the fetch mode.
func (m FetchMode) Category() string {
	if m == ModeDocument {
		return "Consulting Website"
	}
	return "Consulting RSS"
}

// InferMode guesses the fetch mode from a URL: anything that looks like a
// feed endpoint is read as a feed, the rest is scraped as a document.
func InferMode(rawURL string) FetchMode {
	u := strings.ToLower(rawURL)
	if strings.Contains(u, "rss") || strings.Contains(u, "feed") {
		return ModeFeed
	}
	return ModeDocument
}

// Source describes one remote origin of candidate articles.
// Sources are loaded once per run and never mutated.
type Source struct {
	ID       string    `json:"id" yaml:"id" toml:"id"`
	URL      string    `json:"url" yaml:"url" toml:"url"`
	Name     string    `json:"name" yaml:"name" toml:"name"`
	Country  string    `json:"country" yaml:"country" toml:"country"`
	Language string    `json:"language" yaml:"language" toml:"language"`
	Priority Priority  `json:"priority" yaml:"priority" toml:"priority"`
	Mode     FetchMode `json:"mode" yaml:"mode" toml:"mode"`

	// Group is the catalog group the source was declared in
	// (publications, firms, media...). Informational only.
	Group string `json:"group,omitempty" yaml:"-" toml:"-"`
}

// Validate checks the descriptor. Every problem found is returned, joined.
func (s *Source) Validate() error {
	var errs []error

	if strings.TrimSpace(s.ID) == "" {
		errs = append(errs, &ValidationError{Field: "id", Message: "id is required"})
	}
	if err := ValidateURL(s.URL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(s.Language) == "" {
		errs = append(errs, &ValidationError{Field: "language", Message: "language is required"})
	}
	if !s.Priority.Valid() {
		errs = append(errs, &ValidationError{
			Field:   "priority",
			Message: fmt.Sprintf("invalid priority %q (must be high, medium, or low)", s.Priority),
		})
	}
	if !s.Mode.Valid() {
		errs = append(errs, &ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("invalid mode %q (must be feed or document)", s.Mode),
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: source %q: %w", ErrValidationFailed, s.ID, errors.Join(errs...))
}

// Normalize fills defaults for optional fields: name falls back to the ID,
// priority to medium, mode to the one inferred from the URL, and language
// and country codes are trimmed.
func (s *Source) Normalize() {
	s.ID = strings.TrimSpace(s.ID)
	s.URL = strings.TrimSpace(s.URL)
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	s.Country = strings.TrimSpace(s.Country)
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Country == "" {
		s.Country = "Global"
	}
	if s.Priority == "" {
		s.Priority = PriorityMedium
	}
	s.Priority = Priority(strings.ToLower(string(s.Priority)))
	if s.Mode == "" && s.URL != "" {
		s.Mode = InferMode(s.URL)
	}
	s.Mode = FetchMode(strings.ToLower(string(s.Mode)))
}
