// Package classify decides whether an article is about consulting activity
// and scores how relevant it is.
//
// Both decisions are pure functions of the article text, the source name,
// the language and the keyword sets loaded at startup.
package classify

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// ErrNoFallbackSet is returned when the fallback language has no keyword set.
var ErrNoFallbackSet = errors.New("no keyword set for fallback language")

// fold case-folds s for caseless comparison. cases.Caser is stateful, so a
// new one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// terms is a list of case-folded terms matched at the start of a word.
type terms []string

func compile(raw []string) terms {
	out := make(terms, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		f := strings.TrimSpace(fold(t))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// count returns how many distinct terms occur in folded text.
// With prefix set, a term only needs to start at a word boundary, so
// "consultant" also matches "consultants".
func (ts terms) count(text string, prefix bool) int {
	n := 0
	for _, t := range ts {
		if containsTerm(text, t, prefix) {
			n++
		}
	}
	return n
}

func containsTerm(text, term string, prefix bool) bool {
	for start := 0; start <= len(text)-len(term); {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if boundaryBefore(text, i) && (prefix || boundaryAfter(text, end)) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

// Counts is the number of distinct terms of each list found in a text.
type Counts struct {
	Firms      int
	Activities int
	Exclusions int
}

type compiledSet struct {
	firms      terms
	activities terms
	exclusions terms
}

// Lexicon holds the compiled keyword sets of every language.
type Lexicon struct {
	sets     map[string]compiledSet
	fallback string
}

// NewLexicon compiles sets. Languages without a set use fallback's set.
func NewLexicon(sets map[string]entity.KeywordSet, fallback string) (*Lexicon, error) {
	fallback = strings.ToLower(fallback)
	compiled := make(map[string]compiledSet, len(sets))
	for lang, set := range sets {
		compiled[strings.ToLower(lang)] = compiledSet{
			firms:      compile(set.Firms),
			activities: compile(set.Activities),
			exclusions: compile(set.Exclusions),
		}
	}
	if _, ok := compiled[fallback]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoFallbackSet, fallback)
	}
	return &Lexicon{sets: compiled, fallback: fallback}, nil
}

func (l *Lexicon) set(language string) compiledSet {
	if s, ok := l.sets[strings.ToLower(language)]; ok {
		return s
	}
	return l.sets[l.fallback]
}

// Match counts keyword hits of the language's set in title and summary.
// A term must start at a word boundary but may run into a longer word, so
// plurals and inflections count ("consultants", "interest rates") while a
// short name like "ey" does not match inside "money".
func (l *Lexicon) Match(title, summary, language string) Counts {
	text := fold(title + " " + summary)
	s := l.set(language)
	return Counts{
		Firms:      s.firms.count(text, true),
		Activities: s.activities.count(text, true),
		Exclusions: s.exclusions.count(text, true),
	}
}
