package ohq

import "time"

// Status is a question's lifecycle state as reported by the server.
type Status string

const (
	// StatusAsked and StatusActive are both waiting states. The server
	// reports Active when the owning queue is open and staffed; for
	// ordering and counting the client treats them identically.
	StatusAsked  Status = "ASKED"
	StatusActive Status = "ACTIVE"

	// StatusStarted means a staff member has claimed the question.
	StatusStarted Status = "STARTED"

	// Terminal states. A question is never deleted; it ends up in
	// exactly one of these.
	StatusAnswered  Status = "ANSWERED"
	StatusRejected  Status = "REJECTED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// Queue mirrors the queue payload from /courses/{course}/queues/.
type Queue struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"course"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Archived    bool   `json:"archived"`
	// EstimatedWaitTime is in minutes; -1 means the server cannot
	// estimate and no wait label should be shown.
	EstimatedWaitTime int      `json:"estimatedWaitTime"`
	QuestionsAsked    int      `json:"questionsAsked"`
	QuestionsActive   int      `json:"questionsActive"`
	StaffActive       int      `json:"staffActive"`
	Tags              []string `json:"tags"`
}

// User identifies an account referenced by questions.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Question mirrors the question payload. Timestamps other than
// TimeAsked are nil until the corresponding transition happens; at
// most one terminal timestamp is ever set.
type Question struct {
	ID           int64    `json:"id"`
	QueueID      int64    `json:"queue"`
	Text         string   `json:"text"`
	Tags         []string `json:"tags"`
	Status       Status   `json:"status"`
	VideoChatURL string   `json:"videoChatUrl,omitempty"`

	TimeAsked     time.Time  `json:"timeAsked"`
	TimeStarted   *time.Time `json:"timeStarted,omitempty"`
	TimeAnswered  *time.Time `json:"timeAnswered,omitempty"`
	TimeRejected  *time.Time `json:"timeRejected,omitempty"`
	TimeWithdrawn *time.Time `json:"timeWithdrawn,omitempty"`

	AskedBy    User  `json:"askedBy"`
	AnsweredBy *User `json:"answeredBy,omitempty"`

	// OrderKey is a server-assigned monotonic value establishing FIFO
	// order within a queue.
	OrderKey int64 `json:"orderKey"`

	RejectedReason      string `json:"rejectedReason,omitempty"`
	RejectedReasonOther string `json:"rejectedReasonOther,omitempty"`
}

// QuestionDraft is the payload for creating a question.
type QuestionDraft struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// QuestionPatch is a partial update. Nil fields are omitted from the
// request. Lifecycle transitions travel as a Status patch.
type QuestionPatch struct {
	Text                *string  `json:"text,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	Status              *Status  `json:"status,omitempty"`
	RejectedReason      *string  `json:"rejectedReason,omitempty"`
	RejectedReasonOther *string  `json:"rejectedReasonOther,omitempty"`
}

// QueuePatch is a partial queue update.
type QueuePatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	Archived    *bool    `json:"archived,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Position reports a question's rank among waiting questions in its
// queue. -1 means the question is not waiting.
type Position struct {
	Position int `json:"position"`
}

// Membership ties the current user to a course with a role.
type Membership struct {
	CourseID int64  `json:"course"`
	Kind     string `json:"kind"`
}

// Profile is the /accounts/me/ payload.
type Profile struct {
	User
	Memberships []Membership `json:"membershipSet"`
}

// Staff roles as reported in Membership.Kind.
const (
	KindStudent   = "STUDENT"
	KindTA        = "TA"
	KindHeadTA    = "HEAD_TA"
	KindProfessor = "PROFESSOR"
)

// IsStaff reports whether the profile holds a non-student role in the
// given course.
func (p *Profile) IsStaff(courseID int64) bool {
	for _, m := range p.Memberships {
		if m.CourseID == courseID && m.Kind != KindStudent {
			return true
		}
	}
	return false
}
