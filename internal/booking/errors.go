package booking

import (
	"errors"
	"fmt"
)

// RejectKind is the closed set of reasons the core can refuse an operation.
type RejectKind string

const (
	KindInvalidRange      RejectKind = "INVALID_RANGE"
	KindWeekdayNotAllowed RejectKind = "WEEKDAY_NOT_ALLOWED"
	KindOutsideHours      RejectKind = "OUTSIDE_HOURS"
	KindDateBlocked       RejectKind = "DATE_BLOCKED"
	KindOverlapDenied     RejectKind = "OVERLAP_DENIED"
	KindForbidden         RejectKind = "FORBIDDEN"
	KindAlreadyStarted    RejectKind = "ALREADY_STARTED"
	KindInvalidTransition RejectKind = "INVALID_TRANSITION"
)

// RuleError is a typed outcome, not a fault: every kind is recoverable by the
// caller. ConflictID is set only for OVERLAP_DENIED and names the existing
// reservation that blocked the candidate.
type RuleError struct {
	Kind       RejectKind
	ConflictID int64
	Detail     string
}

func (e *RuleError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func reject(kind RejectKind, detail string) *RuleError {
	return &RuleError{Kind: kind, Detail: detail}
}

// KindOf extracts the rejection kind from err, or "" when err is not a RuleError.
func KindOf(err error) RejectKind {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsKind reports whether err is a RuleError of the given kind.
func IsKind(err error, kind RejectKind) bool {
	return KindOf(err) == kind
}
