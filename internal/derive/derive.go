// Package derive computes queue-level aggregates from the live
// question set. The server's own computed fields remain
// authoritative; these derivations only bridge the gap between a
// local change and the next fetch.
package derive

import (
	"fmt"
	"sort"

	"github.com/ohq-tools/ohqtui/internal/lifecycle"
	"github.com/ohq-tools/ohqtui/internal/ohq"
)

// Counts are the queue-level tallies shown in the queue header.
type Counts struct {
	QuestionsAsked  int
	QuestionsActive int
	StaffActive     int
}

// Count tallies the question set: QuestionsAsked counts the waiting
// set (Asked and Active), QuestionsActive counts claimed questions,
// StaffActive counts distinct staff currently holding one.
func Count(questions []ohq.Question) Counts {
	var c Counts
	staff := make(map[int64]struct{})
	for i := range questions {
		q := &questions[i]
		switch {
		case lifecycle.Waiting(q.Status):
			c.QuestionsAsked++
		case q.Status == ohq.StatusStarted:
			c.QuestionsActive++
			if q.AnsweredBy != nil {
				staff[q.AnsweredBy.ID] = struct{}{}
			}
		}
	}
	c.StaffActive = len(staff)
	return c
}

// PositionOf returns how many waiting questions precede the given one
// in its queue, or -1 when the question is absent or not waiting.
// Idempotent: recomputation with an unchanged set yields the same
// rank.
func PositionOf(questions []ohq.Question, questionID int64) int {
	var target *ohq.Question
	for i := range questions {
		if questions[i].ID == questionID {
			target = &questions[i]
			break
		}
	}
	if target == nil || !lifecycle.Waiting(target.Status) {
		return -1
	}
	position := 0
	for i := range questions {
		q := &questions[i]
		if q.ID == questionID || !lifecycle.Waiting(q.Status) {
			continue
		}
		if q.QueueID == target.QueueID && q.OrderKey < target.OrderKey {
			position++
		}
	}
	return position
}

// FormatWaitTime renders the estimated wait label. -1 means the
// server cannot estimate; the label is suppressed entirely rather
// than showing a negative duration.
func FormatWaitTime(mins int) string {
	if mins < 0 {
		return ""
	}
	if mins == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d mins", mins)
}

// SortForStaff returns the staff-facing view of a question set:
// visible questions passing the tag filter, FIFO by order key.
func SortForStaff(questions []ohq.Question, tagFilter []string) []ohq.Question {
	var out []ohq.Question
	for i := range questions {
		q := questions[i]
		if lifecycle.Visible(&q) && lifecycle.MatchesTags(&q, tagFilter) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OrderKey < out[j].OrderKey
	})
	return out
}

// OwnQuestion returns the asker's open question in the set, or nil.
// A student has at most one at a time; terminal questions do not
// count.
func OwnQuestion(questions []ohq.Question, userID int64) *ohq.Question {
	for i := range questions {
		q := &questions[i]
		if q.AskedBy.ID == userID && !lifecycle.Terminal(q.Status) {
			return q
		}
	}
	return nil
}
