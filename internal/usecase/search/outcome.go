package search

import "github.com/obig20/docorganizer/internal/domain/search/result"

// outcomeKind tags the result of a semantic search attempt. The orchestrator
// branches on the tag instead of using panics or errors as control flow.
type outcomeKind int

const (
	// outcomeSemantic carries usable semantic hits.
	outcomeSemantic outcomeKind = iota
	// outcomeFallback means the semantic path could not answer this query;
	// the keyword path takes over and the caller never sees a failure.
	outcomeFallback
	// outcomeTimeout means the caller-supplied deadline expired; the query
	// fails with a timeout error and no partial results.
	outcomeTimeout
)

// semanticOutcome is the tagged result of one semantic attempt.
type semanticOutcome struct {
	kind   outcomeKind
	hits   []result.Result
	reason string
	cause  error
}

func semanticHits(hits []result.Result) semanticOutcome {
	return semanticOutcome{kind: outcomeSemantic, hits: hits}
}

func fallback(reason string, cause error) semanticOutcome {
	return semanticOutcome{kind: outcomeFallback, reason: reason, cause: cause}
}

func timedOut(cause error) semanticOutcome {
	return semanticOutcome{kind: outcomeTimeout, cause: cause}
}
