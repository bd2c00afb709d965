package classify

import (
	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// ScoringConfig holds the weights of the relevance score and the minimum
// score per fetch mode.
type ScoringConfig struct {
	Base             int
	FirmWeight       int
	ActivityWeight   int
	ExclusionPenalty int

	// PublicationBonus applies when the source name matches one of
	// Publications (outlets specialized in consulting).
	PublicationBonus int
	Publications     []string

	// FirmSiteBonus applies when the source name matches one of FirmSites
	// (a firm's own newsroom).
	FirmSiteBonus int
	FirmSites     []string

	// TitleTermWeight is added per TitleTerms stem found in the title.
	TitleTermWeight int
	TitleTerms      []string

	FeedMinScore     int
	DocumentMinScore int
}

// DefaultScoringConfig returns the production weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Base:             30,
		FirmWeight:       35,
		ActivityWeight:   15,
		ExclusionPenalty: 20,
		PublicationBonus: 25,
		Publications:     []string{"consultancy.org", "management consulted", "strategy+business", "vault consulting"},
		FirmSiteBonus:    20,
		FirmSites:        []string{"mckinsey", "bcg", "bain", "deloitte", "pwc", "ey", "kpmg", "accenture", "falconi", "elo group", "visagio"},
		TitleTermWeight:  10,
		TitleTerms:       []string{"consulting", "consultancy", "consultant", "advisory", "strategy", "transformation"},
		FeedMinScore:     70,
		DocumentMinScore: 75,
	}
}

// Scorer assigns a relevance score in [MinScore, MaxScore].
type Scorer struct {
	lex          *Lexicon
	cfg          ScoringConfig
	publications terms
	firmSites    terms
	titleTerms   terms
}

func NewScorer(lex *Lexicon, cfg ScoringConfig) *Scorer {
	return &Scorer{
		lex:          lex,
		cfg:          cfg,
		publications: compile(cfg.Publications),
		firmSites:    compile(cfg.FirmSites),
		titleTerms:   compile(cfg.TitleTerms),
	}
}

// Score computes the relevance of an article. The result depends only on
// the arguments and the keyword sets.
func (s *Scorer) Score(title, summary, sourceName, language string) int {
	counts := s.lex.Match(title, summary, language)

	score := s.cfg.Base
	score += counts.Firms * s.cfg.FirmWeight
	score += counts.Activities * s.cfg.ActivityWeight
	score -= counts.Exclusions * s.cfg.ExclusionPenalty

	source := fold(sourceName)
	if s.publications.count(source, false) > 0 {
		score += s.cfg.PublicationBonus
	}
	if s.firmSites.count(source, false) > 0 {
		score += s.cfg.FirmSiteBonus
	}

	score += s.titleTerms.count(fold(title), true) * s.cfg.TitleTermWeight

	return clamp(score)
}

// MinScoreFor returns the threshold of a fetch mode. Document extraction is
// noisier than feeds, so it usually carries the stricter threshold.
func (s *Scorer) MinScoreFor(mode entity.FetchMode) int {
	if mode == entity.ModeDocument {
		return s.cfg.DocumentMinScore
	}
	return s.cfg.FeedMinScore
}

// Passes reports whether score reaches the threshold of mode.
func (s *Scorer) Passes(score int, mode entity.FetchMode) bool {
	return score >= s.MinScoreFor(mode)
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
