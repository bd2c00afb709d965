package entity

import "fmt"

// KeywordSet holds the terms of one language. Sets are read-only after load.
type KeywordSet struct {
	Firms      []string `json:"firms" yaml:"firms" toml:"firms"`
	Activities []string `json:"activities" yaml:"activities" toml:"activities"`
	Exclusions []string `json:"exclude" yaml:"exclude" toml:"exclude"`
}

// Validate rejects sets that could never accept an item.
func (k KeywordSet) Validate(lang string) error {
	if len(k.Firms) == 0 && len(k.Activities) == 0 {
		return &ValidationError{
			Field:   "keywords." + lang,
			Message: fmt.Sprintf("language %q needs at least one firm or activity term", lang),
		}
	}
	return nil
}
