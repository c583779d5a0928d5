// Package session wires the API client, resource store, push channel,
// and synchronization controller into the operations the UI calls.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ohq-tools/ohqtui/internal/cache"
	"github.com/ohq-tools/ohqtui/internal/lifecycle"
	"github.com/ohq-tools/ohqtui/internal/live"
	"github.com/ohq-tools/ohqtui/internal/ohq"
	"github.com/ohq-tools/ohqtui/internal/syncer"
)

// Cache keys. Collections and singletons share one namespace.
func queuesKey(courseID int64) string {
	return fmt.Sprintf("/courses/%d/queues/", courseID)
}

func questionsKey(courseID, queueID int64) string {
	return fmt.Sprintf("/courses/%d/queues/%d/questions/", courseID, queueID)
}

func positionKey(courseID, queueID, questionID int64) string {
	return fmt.Sprintf("/courses/%d/queues/%d/questions/%d/position/", courseID, queueID, questionID)
}

// Session is the course-scoped façade over the sync engine. One
// Session lives for the lifetime of the TUI.
type Session struct {
	api        ohq.API
	store      *cache.Store
	controller *syncer.Controller
	courseID   int64

	profile *ohq.Profile

	mu        sync.Mutex
	questions map[int64]*cache.ResourceList[ohq.Question]
	queues    *cache.ResourceList[ohq.Queue]
	positions map[int64]*cache.Resource[ohq.Position]
}

// New builds a Session. The controller (and through it the push
// client) must already be running.
func New(api ohq.API, store *cache.Store, controller *syncer.Controller, courseID int64) *Session {
	s := &Session{
		api:        api,
		store:      store,
		controller: controller,
		courseID:   courseID,
		questions:  make(map[int64]*cache.ResourceList[ohq.Question]),
		positions:  make(map[int64]*cache.Resource[ohq.Position]),
	}
	s.queues = cache.NewResourceList(store, queuesKey(courseID),
		func(q ohq.Queue) int64 { return q.ID },
		func(ctx context.Context) ([]ohq.Queue, error) {
			return api.ListQueues(ctx, courseID)
		})
	controller.Register(s.queues.Key(), s.queues.Loader())
	return s
}

// Login fetches and caches the current user's profile.
func (s *Session) Login(ctx context.Context) (*ohq.Profile, error) {
	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return profile, nil
}

// Profile returns the cached login profile, or nil before Login.
func (s *Session) Profile() *ohq.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// IsStaff reports whether the logged-in user holds a staff role in
// this course.
func (s *Session) IsStaff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile != nil && s.profile.IsStaff(s.courseID)
}

func (s *Session) actor() lifecycle.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := lifecycle.Actor{}
	if s.profile != nil {
		a.UserID = s.profile.ID
		a.Staff = s.profile.IsStaff(s.courseID)
	}
	return a
}

// Queues returns the course's queue collection resource.
func (s *Session) Queues() *cache.ResourceList[ohq.Queue] {
	return s.queues
}

// Questions returns the question collection resource for a queue,
// creating and registering it on first use.
func (s *Session) Questions(queueID int64) *cache.ResourceList[ohq.Question] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.questions[queueID]; ok {
		return r
	}
	r := cache.NewResourceList(s.store, questionsKey(s.courseID, queueID),
		func(q ohq.Question) int64 { return q.ID },
		func(ctx context.Context) ([]ohq.Question, error) {
			return s.api.ListQuestions(ctx, s.courseID, queueID)
		})
	s.questions[queueID] = r
	s.controller.Register(r.Key(), r.Loader())
	return r
}

// Position returns the position resource for the student's own
// question. It has no subscription of its own: freshness rides on the
// queue's subscription through a cross-invalidation edge installed by
// BindQueue.
func (s *Session) Position(queueID, questionID int64) *cache.Resource[ohq.Position] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.positions[questionID]; ok {
		return r
	}
	r := cache.NewResource(s.store, positionKey(s.courseID, queueID, questionID),
		func(ctx context.Context) (ohq.Position, error) {
			return s.api.GetPosition(ctx, s.courseID, queueID, questionID)
		})
	s.positions[questionID] = r
	s.controller.Register(r.Key(), r.Loader())
	return r
}

// BindQueue subscribes the push channel filters for one queue: the
// question collection keyed by queue_id and the queue record itself.
// The returned cancel must run when the view unmounts.
func (s *Session) BindQueue(queueID int64) (cancel func()) {
	questions := s.Questions(queueID)

	cancelQuestions := s.controller.Bind(
		live.Subscription{Model: "ohq.Question", Property: "queue_id", Value: queueID},
		questions.Key(),
	)
	cancelQueue := s.controller.Bind(
		live.Subscription{Model: "ohq.Queue", Property: "id", Value: queueID},
		s.queues.Key(),
	)

	return func() {
		cancelQuestions()
		cancelQueue()
	}
}

// BindPosition installs the cross-invalidation edge from a queue's
// question collection to the student's position read.
func (s *Session) BindPosition(queueID, questionID int64) {
	position := s.Position(queueID, questionID)
	s.controller.Derive(questionsKey(s.courseID, queueID), position.Key())
}

// Ask creates a question in a queue. The draft appears in the cached
// collection immediately and is reconciled with the server's copy,
// which carries the authoritative id and order key.
func (s *Session) Ask(ctx context.Context, queueID int64, text string, tags []string) (*ohq.Question, error) {
	questions := s.Questions(queueID)
	profile := s.Profile()
	draft := ohq.Question{
		ID:        -time.Now().UnixNano(), // provisional, replaced on reconcile
		QueueID:   queueID,
		Text:      text,
		Tags:      tags,
		Status:    ohq.StatusAsked,
		TimeAsked: time.Now(),
	}
	if profile != nil {
		draft.AskedBy = profile.User
	}
	confirmed, err := questions.Append(ctx, draft, func(ctx context.Context) (ohq.Question, error) {
		created, err := s.api.CreateQuestion(ctx, s.courseID, queueID, ohq.QuestionDraft{Text: text, Tags: tags})
		if err != nil {
			return ohq.Question{}, err
		}
		return *created, nil
	})
	if err != nil {
		return nil, err
	}
	s.controller.Poke(s.queues.Key())
	return &confirmed, nil
}

// transition performs the optimistic write cycle for one lifecycle
// transition: validate locally, rewrite the cached element, send the
// status patch, reconcile or roll back.
func (s *Session) transition(ctx context.Context, queueID, questionID int64, to ohq.Status, patch ohq.QuestionPatch) error {
	questions := s.Questions(queueID)
	actor := s.actor()

	// Validate against the cached copy first so an impossible
	// transition never leaves the client.
	if items, _, ok := questions.Peek(); ok {
		for i := range items {
			if items[i].ID == questionID {
				clone := items[i]
				if err := lifecycle.Transition(&clone, to, actor, time.Now()); err != nil {
					return err
				}
				break
			}
		}
	}

	err := questions.MutateItem(ctx, questionID,
		func(q ohq.Question) ohq.Question {
			_ = lifecycle.Transition(&q, to, actor, time.Now())
			return q
		},
		func(ctx context.Context) (ohq.Question, error) {
			updated, err := s.api.UpdateQuestion(ctx, s.courseID, queueID, questionID, patch)
			if err != nil {
				return ohq.Question{}, err
			}
			return *updated, nil
		})
	if err != nil {
		return err
	}
	// Queue counts are server-computed; nudge them after any
	// transition instead of deriving locally and risking skew.
	s.controller.Poke(s.queues.Key())
	return nil
}

func statusPatch(to ohq.Status) ohq.QuestionPatch {
	status := to
	return ohq.QuestionPatch{Status: &status}
}

// Claim marks a waiting question as started by the current staff
// member.
func (s *Session) Claim(ctx context.Context, queueID, questionID int64) error {
	return s.transition(ctx, queueID, questionID, ohq.StatusStarted, statusPatch(ohq.StatusStarted))
}

// Unclaim returns a started question to the waiting pool.
func (s *Session) Unclaim(ctx context.Context, queueID, questionID int64) error {
	return s.transition(ctx, queueID, questionID, ohq.StatusAsked, statusPatch(ohq.StatusAsked))
}

// Answer resolves a started question.
func (s *Session) Answer(ctx context.Context, queueID, questionID int64) error {
	return s.transition(ctx, queueID, questionID, ohq.StatusAnswered, statusPatch(ohq.StatusAnswered))
}

// Reject declines a question with a reason. reasonOther is required
// exactly when reason is "OTHER".
func (s *Session) Reject(ctx context.Context, queueID, questionID int64, reason, reasonOther string) error {
	if (reason == "OTHER") != (reasonOther != "") {
		return fmt.Errorf("rejection reason %q requires matching detail", reason)
	}
	patch := statusPatch(ohq.StatusRejected)
	patch.RejectedReason = &reason
	if reasonOther != "" {
		patch.RejectedReasonOther = &reasonOther
	}
	return s.transition(ctx, queueID, questionID, ohq.StatusRejected, patch)
}

// Withdraw retracts the student's own question.
func (s *Session) Withdraw(ctx context.Context, queueID, questionID int64) error {
	return s.transition(ctx, queueID, questionID, ohq.StatusWithdrawn, statusPatch(ohq.StatusWithdrawn))
}

// ClearQueue bulk-rejects all waiting questions. No optimistic local
// write: the server decides which questions are affected, and the
// push notifications it emits refresh the collection.
func (s *Session) ClearQueue(ctx context.Context, queueID int64) error {
	if err := s.api.ClearQueue(ctx, s.courseID, queueID); err != nil {
		return err
	}
	s.controller.Poke(s.Questions(queueID).Key())
	s.controller.Poke(s.queues.Key())
	return nil
}

// SetQueueActive opens or closes a queue.
func (s *Session) SetQueueActive(ctx context.Context, queueID int64, active bool) error {
	err := s.queues.MutateItem(ctx, queueID,
		func(q ohq.Queue) ohq.Queue {
			q.Active = active
			return q
		},
		func(ctx context.Context) (ohq.Queue, error) {
			updated, err := s.api.UpdateQueue(ctx, s.courseID, queueID, ohq.QueuePatch{Active: &active})
			if err != nil {
				return ohq.Queue{}, err
			}
			return *updated, nil
		})
	return err
}

// MassInvite invites a batch of emails to the course.
func (s *Session) MassInvite(ctx context.Context, emails []string, kind string) error {
	return s.api.MassInvite(ctx, s.courseID, emails, kind)
}
