package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, stable across releases. Used as metric labels, audit values
// and transport error codes.
const (
	KindInsufficientCatalog     = "insufficient_catalog"
	KindNoCandidateItem         = "no_candidate_item"
	KindUndeterminedCorrectness = "undetermined_correctness"
	KindGeneratorUnavailable    = "generator_unavailable"
	KindInvalidReference        = "invalid_reference"
	KindInternal                = "internal"
)

// ErrInsufficientCatalog indicates no catalog entry matches any goal skill.
type ErrInsufficientCatalog struct {
	Skills []SkillID
}

func (e *ErrInsufficientCatalog) Error() string {
	if len(e.Skills) == 0 {
		return "insufficient catalog: no goal skills supplied"
	}
	ids := make([]string, len(e.Skills))
	for i, s := range e.Skills {
		ids[i] = string(s)
	}
	return fmt.Sprintf("insufficient catalog: no entry covers skills [%s]", strings.Join(ids, ", "))
}

// ErrNoCandidateItem indicates the pool is exhausted and no item could be
// synthesized.
type ErrNoCandidateItem struct {
	Domain string
	Reason string
	Err    error
}

func (e *ErrNoCandidateItem) Error() string {
	msg := fmt.Sprintf("no candidate item for domain %q: %s", e.Domain, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ErrNoCandidateItem) Unwrap() error { return e.Err }

// ErrUndeterminedCorrectness indicates correctness cannot be decided
// locally. Callers must resolve it explicitly.
type ErrUndeterminedCorrectness struct {
	ItemID string
	Reason string
}

func (e *ErrUndeterminedCorrectness) Error() string {
	return fmt.Sprintf("correctness of item %q undetermined: %s", e.ItemID, e.Reason)
}

// ErrGeneratorUnavailable indicates the content generator failed, timed out
// or was rejected by the circuit breaker.
type ErrGeneratorUnavailable struct {
	Op  string
	Err error
}

func (e *ErrGeneratorUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("content generator unavailable (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("content generator unavailable (%s)", e.Op)
}

func (e *ErrGeneratorUnavailable) Unwrap() error { return e.Err }

// ErrInvalidReference indicates an id that does not resolve against the
// supplied catalog, skill list, item or plan.
type ErrInvalidReference struct {
	Kind  string // "content", "skill", "option", "item", "module"
	ID    string
	Where string
}

func (e *ErrInvalidReference) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("invalid %s reference %q in %s", e.Kind, e.ID, e.Where)
	}
	return fmt.Sprintf("invalid %s reference %q", e.Kind, e.ID)
}

// Kind returns the taxonomy kind of err, or KindInternal.
func Kind(err error) string {
	var (
		insufficient *ErrInsufficientCatalog
		noCandidate  *ErrNoCandidateItem
		undetermined *ErrUndeterminedCorrectness
		unavailable  *ErrGeneratorUnavailable
		invalidRef   *ErrInvalidReference
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalidRef):
		return KindInvalidReference
	case errors.As(err, &insufficient):
		return KindInsufficientCatalog
	case errors.As(err, &noCandidate):
		return KindNoCandidateItem
	case errors.As(err, &undetermined):
		return KindUndeterminedCorrectness
	case errors.As(err, &unavailable):
		return KindGeneratorUnavailable
	default:
		return KindInternal
	}
}

// IsGeneratorUnavailable reports whether err should trigger a fallback.
func IsGeneratorUnavailable(err error) bool {
	var unavailable *ErrGeneratorUnavailable
	return errors.As(err, &unavailable)
}
