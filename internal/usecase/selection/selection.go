// Package selection builds the final shortlist: ranked by source priority
// then score, capped per source, per country and in total.
package selection

import (
	"sort"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// Limits are the diversity caps of one run.
type Limits struct {
	MaxTotal      int
	MaxPerSource  int
	MaxPerCountry int
}

func DefaultLimits() Limits {
	return Limits{MaxTotal: 20, MaxPerSource: 2, MaxPerCountry: 3}
}

// Select returns at most MaxTotal candidates in (priority rank desc, score
// desc) order, taking at most MaxPerSource per source and MaxPerCountry per
// country. It is a single greedy pass: a skipped candidate is never
// reconsidered. Ties keep input order. candidates is not modified.
func Select(candidates []entity.Article, limits Limits) []entity.Article {
	if limits.MaxTotal <= 0 || limits.MaxPerSource <= 0 || limits.MaxPerCountry <= 0 {
		return []entity.Article{}
	}

	ranked := make([]entity.Article, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Priority.Rank(), ranked[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Score > ranked[j].Score
	})

	perSource := make(map[string]int)
	perCountry := make(map[string]int)
	out := make([]entity.Article, 0, min(limits.MaxTotal, len(ranked)))

	for _, a := range ranked {
		if len(out) >= limits.MaxTotal {
			break
		}
		if perSource[a.SourceID] >= limits.MaxPerSource || perCountry[a.Country] >= limits.MaxPerCountry {
			continue
		}
		perSource[a.SourceID]++
		perCountry[a.Country]++
		out = append(out, a)
	}
	return out
}
