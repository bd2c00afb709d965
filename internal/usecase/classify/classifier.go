package classify

// Rule names the branch of the decision that fired.
type Rule string

const (
	RuleTooGeneric      Rule = "too_generic"
	RuleFirmAndActivity Rule = "firm_and_activity"
	RuleFirm            Rule = "firm"
	RuleActivities      Rule = "repeated_activity"
	RuleNoSignal        Rule = "no_signal"
)

// Decision is the outcome of classifying one article.
type Decision struct {
	Counts   Counts
	Accepted bool
	Rule     Rule
}

// Classifier accepts articles that are specifically about consulting, as
// opposed to general business or economic news.
type Classifier struct {
	lex *Lexicon
}

func NewClassifier(lex *Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

// IsInDomain reports whether title and summary are about consulting.
func (c *Classifier) IsInDomain(title, summary, language string) bool {
	return c.Explain(title, summary, language).Accepted
}

// Explain classifies and reports which rule decided. Rules apply in order:
// more than one exclusion term rejects; a firm with an activity accepts; a
// firm alone accepts; two or more activities accept; anything else rejects.
func (c *Classifier) Explain(title, summary, language string) Decision {
	counts := c.lex.Match(title, summary, language)
	d := Decision{Counts: counts}

	switch {
	case counts.Exclusions > 1:
		d.Rule = RuleTooGeneric
	case counts.Firms >= 1 && counts.Activities >= 1:
		d.Accepted, d.Rule = true, RuleFirmAndActivity
	case counts.Firms >= 1:
		d.Accepted, d.Rule = true, RuleFirm
	case counts.Activities >= 2:
		d.Accepted, d.Rule = true, RuleActivities
	default:
		d.Rule = RuleNoSignal
	}
	return d
}
