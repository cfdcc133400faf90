package coverage

import "strings"

// Default classification tokens.
var (
	DefaultCriticalTokens = []string{"crítico", "critico", "critical"}
	DefaultLowTokens      = []string{"baixo", "low"}
)

// Classifier decides whether a coverage level text is critical.
// Matching is case-insensitive substring search; accents are significant.
type Classifier struct {
	Critical []string
	Low      []string
}

// DefaultClassifier returns a classifier with the default tokens.
func DefaultClassifier() Classifier {
	return Classifier{Critical: DefaultCriticalTokens, Low: DefaultLowTokens}
}

// IsCritical reports whether level contains any critical token.
// Used by the history path, which does not exclude low levels.
func (c Classifier) IsCritical(level string) bool {
	return containsAny(strings.ToLower(level), c.Critical)
}

// IsCriticalSummary reports whether level is critical and carries no low token.
// Used by the summary path.
func (c Classifier) IsCriticalSummary(level string) bool {
	lower := strings.ToLower(level)
	return containsAny(lower, c.Critical) && !containsAny(lower, c.Low)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(s, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}
