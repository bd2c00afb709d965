// Package catalog loads the source catalog and keyword sets of the collector.
//
// A catalog file lists sources in named groups plus one keyword set per
// language. Files are validated as a whole when loaded: a malformed entry
// fails the load instead of failing later inside retrieval.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// DefaultLanguage is the keyword set used for languages without their own.
const DefaultLanguage = "en"

var (
	ErrEmptyCatalog          = errors.New("catalog has no sources")
	ErrMissingDefaultKeyword = fmt.Errorf("catalog has no %q keyword set", DefaultLanguage)
	ErrUnsupportedFormat     = errors.New("unsupported catalog format")
)

// Group is a named list of sources, in file order.
type Group struct {
	Name    string          `yaml:"name" toml:"name"`
	Sources []entity.Source `yaml:"sources" toml:"sources"`
}

// File is the on-disk schema.
type File struct {
	Groups   []Group                      `yaml:"groups" toml:"groups"`
	Keywords map[string]entity.KeywordSet `yaml:"keywords" toml:"keywords"`
}

// Catalog is a validated, read-only view of a catalog file.
type Catalog struct {
	groups   []Group
	keywords map[string]entity.KeywordSet
}

// Filter narrows Sources.
type Filter struct {
	// MinPriority drops sources ranked below this tier. Empty keeps all.
	MinPriority entity.Priority

	// MaxPerGroup keeps only the first N sources of each group. Zero keeps all.
	MaxPerGroup int

	// Groups restricts the result to the named groups. Empty keeps all.
	Groups []string
}

// New validates f and builds a Catalog from it.
func New(f File) (*Catalog, error) {
	var errs []error
	seen := make(map[string]string)
	groups := make([]Group, 0, len(f.Groups))
	total := 0

	for gi, g := range f.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = fmt.Sprintf("group-%d", gi+1)
		}
		out := Group{Name: name, Sources: make([]entity.Source, 0, len(g.Sources))}

		for i, src := range g.Sources {
			src.Normalize()
			src.Group = name
			if err := src.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", name, i, err))
				continue
			}
			if prev, dup := seen[src.ID]; dup {
				errs = append(errs, fmt.Errorf("%s[%d]: %w: duplicate source id %q (first declared in %s)",
					name, i, entity.ErrValidationFailed, src.ID, prev))
				continue
			}
			seen[src.ID] = name
			out.Sources = append(out.Sources, src)
			total++
		}
		groups = append(groups, out)
	}

	keywords := make(map[string]entity.KeywordSet, len(f.Keywords))
	for lang, set := range f.Keywords {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if err := set.Validate(lang); err != nil {
			errs = append(errs, err)
			continue
		}
		keywords[lang] = set
	}
	if _, ok := keywords[DefaultLanguage]; !ok {
		errs = append(errs, ErrMissingDefaultKeyword)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if total == 0 {
		return nil, ErrEmptyCatalog
	}

	return &Catalog{groups: groups, keywords: keywords}, nil
}

// Sources returns the sources matching filter, in file order.
// The returned slice is a fresh copy.
func (c *Catalog) Sources(filter Filter) []entity.Source {
	wanted := make(map[string]bool, len(filter.Groups))
	for _, g := range filter.Groups {
		wanted[g] = true
	}

	var out []entity.Source
	for _, g := range c.groups {
		if len(wanted) > 0 && !wanted[g.Name] {
			continue
		}
		taken := 0
		for _, src := range g.Sources {
			if filter.MinPriority != "" && src.Priority.Rank() < filter.MinPriority.Rank() {
				continue
			}
			if filter.MaxPerGroup > 0 && taken >= filter.MaxPerGroup {
				break
			}
			out = append(out, src)
			taken++
		}
	}
	return out
}

// All is Sources with an empty filter.
func (c *Catalog) All() []entity.Source {
	return c.Sources(Filter{})
}

// GroupNames returns the group names in file order.
func (c *Catalog) GroupNames() []string {
	names := make([]string, 0, len(c.groups))
	for _, g := range c.groups {
		names = append(names, g.Name)
	}
	return names
}

// Keywords returns a copy of the per-language keyword sets.
func (c *Catalog) Keywords() map[string]entity.KeywordSet {
	out := make(map[string]entity.KeywordSet, len(c.keywords))
	for k, v := range c.keywords {
		out[k] = v
	}
	return out
}

// Languages lists the languages with a keyword set, sorted.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.keywords))
	for k := range c.keywords {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}
