package provider

import "context"

// demoProvider is the deterministic offline responder: the terminal element
// of every fallback chain. It pattern-matches the theme table against the
// prompt and returns the matching canned paragraph, else a generic one.
// It never performs I/O and never fails.
type demoProvider struct{}

// NewDemo returns the offline responder.
func NewDemo() Provider { return demoProvider{} }

func (demoProvider) Name() string { return "demo" }

func (demoProvider) Available() bool { return true }

func (demoProvider) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	return &Completion{Text: Canned(req.Prompt)}, nil
}

// Canned maps text to the offline reply paragraph for the first matching
// theme, or the generic paragraph when no theme matches. Pure function.
func Canned(text string) string {
	for _, theme := range Themes() {
		if theme.Matches(text) || theme.MatchesRelated(text) {
			return theme.Canned
		}
	}
	return genericCanned
}

// Compile-time interface satisfaction check.
var _ Provider = demoProvider{}
