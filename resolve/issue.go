package resolve

import "fmt"

// Issue is one accumulated problem found during resolution or validation
// (§4.D pass three: "it emits a list of errors, not the first, so authors
// see all problems at once").
type Issue struct {
	Kind    string // "duplicate_id", "unresolved", "invariant"
	Message string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.Kind, i.Message) }

// Error is the ResolutionError/ValidationError kind from §7: fatal,
// carrying the accumulated list of Issues.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].String()
	}
	return fmt.Sprintf("resolve: %d issues (first: %s)", len(e.Issues), e.Issues[0].String())
}

func duplicateIDIssue(id string, a, b any) Issue {
	return Issue{
		Kind:    "duplicate_id",
		Message: fmt.Sprintf("duplicate id %q: %#v vs %#v", id, a, b),
	}
}

func unresolvedIssue(kind, id string) Issue {
	return Issue{Kind: "unresolved", Message: fmt.Sprintf("unresolved: %s:%s", kind, id)}
}

func invariantIssue(format string, args ...any) Issue {
	return Issue{Kind: "invariant", Message: fmt.Sprintf(format, args...)}
}
