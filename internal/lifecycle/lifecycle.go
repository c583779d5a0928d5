// Package lifecycle implements the question state machine.
//
// Asked and Active are both waiting states: Active means the owning
// queue is open and staffed, but for ordering, counting, and
// filtering the two are one "waiting" set. Started means a staff
// member has claimed the question. Answered, Rejected, and Withdrawn
// are terminal; questions are never deleted, only superseded by a
// terminal state.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/ohq-tools/ohqtui/internal/ohq"
)

// ErrInvalidTransition is returned when a requested transition is not
// in the permitted table, or the actor may not perform it. The
// question is left untouched.
var ErrInvalidTransition = errors.New("invalid question transition")

// Actor identifies who is requesting a transition.
type Actor struct {
	UserID int64
	Staff  bool
}

// Waiting reports whether s is a pre-claim waiting state.
func Waiting(s ohq.Status) bool {
	return s == ohq.StatusAsked || s == ohq.StatusActive
}

// Terminal reports whether s is a final state.
func Terminal(s ohq.Status) bool {
	switch s {
	case ohq.StatusAnswered, ohq.StatusRejected, ohq.StatusWithdrawn:
		return true
	}
	return false
}

// Visible reports whether a question should appear in the staff-facing
// queue view.
func Visible(q *ohq.Question) bool {
	return q.Status == ohq.StatusActive || q.Status == ohq.StatusStarted
}

// MatchesTags reports whether a question passes the staff tag filter.
// An empty filter means "show all"; otherwise the question's tag set
// must intersect the filter.
func MatchesTags(q *ohq.Question, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range q.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Transition validates and applies a lifecycle transition in place,
// stamping timestamps and claim ownership with now. On failure the
// question is unchanged and the error satisfies
// errors.Is(err, ErrInvalidTransition).
//
// Permitted transitions:
//
//	Asked/Active  -> Started            staff claims; sets AnsweredBy, TimeStarted
//	Started       -> Asked              staff un-claims; clears AnsweredBy, TimeStarted
//	Started       -> Answered           staff; sets TimeAnswered
//	Asked/Active/Started -> Rejected    staff; sets TimeRejected
//	Asked/Active/Started -> Withdrawn   owning student; sets TimeWithdrawn
func Transition(q *ohq.Question, to ohq.Status, actor Actor, now time.Time) error {
	from := q.Status

	switch to {
	case ohq.StatusStarted:
		if !actor.Staff || !Waiting(from) {
			return invalid(from, to)
		}
		q.Status = to
		q.AnsweredBy = &ohq.User{ID: actor.UserID}
		q.TimeStarted = &now
		return nil

	case ohq.StatusAsked, ohq.StatusActive:
		// Un-claim. The server reports the authoritative waiting
		// substate on the next fetch; locally the question reverts to
		// plain waiting.
		if !actor.Staff || from != ohq.StatusStarted {
			return invalid(from, to)
		}
		q.Status = to
		q.AnsweredBy = nil
		q.TimeStarted = nil
		return nil

	case ohq.StatusAnswered:
		if !actor.Staff || from != ohq.StatusStarted {
			return invalid(from, to)
		}
		q.Status = to
		q.TimeAnswered = &now
		return nil

	case ohq.StatusRejected:
		if !actor.Staff || Terminal(from) {
			return invalid(from, to)
		}
		q.Status = to
		q.TimeRejected = &now
		return nil

	case ohq.StatusWithdrawn:
		if actor.Staff || Terminal(from) || q.AskedBy.ID != actor.UserID {
			return invalid(from, to)
		}
		q.Status = to
		q.TimeWithdrawn = &now
		return nil
	}

	return invalid(from, to)
}

// CanTransition reports whether Transition would succeed, without
// modifying the question.
func CanTransition(q *ohq.Question, to ohq.Status, actor Actor) bool {
	clone := *q
	return Transition(&clone, to, actor, time.Time{}) == nil
}

func invalid(from, to ohq.Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
