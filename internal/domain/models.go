package domain

import "time"

// AssessmentStatus is the lifecycle state of a check-in assessment.
type AssessmentStatus string

const (
	StatusPending   AssessmentStatus = "PENDING"
	StatusCompleted AssessmentStatus = "COMPLETED"
)

// QuestionType identifies the slot a question fills within an assessment.
type QuestionType string

const (
	QuestionFact    QuestionType = "FACT"
	QuestionFeeling QuestionType = "FEELING"
	QuestionBarrier QuestionType = "BARRIER"
)

// QuestionTypes lists the required slots in presentation order.
var QuestionTypes = []QuestionType{QuestionFact, QuestionFeeling, QuestionBarrier}

// RiskLevel is the coarse classification derived on completion.
type RiskLevel string

const (
	RiskStable    RiskLevel = "STABLE"
	RiskTired     RiskLevel = "TIRED"
	RiskOfBurnout RiskLevel = "RISK_OF_BURNOUT"
)

// Assessment is one full check-in session for one employee.
type Assessment struct {
	ID             string           `json:"id"`
	EmployeeID     string           `json:"employeeId"`
	Status         AssessmentStatus `json:"status"`
	Score          int              `json:"score,omitempty"`
	Risk           RiskLevel        `json:"risk,omitempty"`
	Recommendation string           `json:"recommendation,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Entry is a single question slot within an assessment. Order runs 1..N and is
// unique within the assessment; UnlockAt instants are non-decreasing in Order,
// with the first entry unlocking at the assessment's creation time.
type Entry struct {
	ID             string       `json:"id"`
	AssessmentID   string       `json:"assessmentId"`
	Order          int          `json:"order"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	UnlockAt       time.Time    `json:"unlockAt"`
	AnswerText     *string      `json:"answerText,omitempty"`
	AnswerValue    *int         `json:"answerValue,omitempty"`
	TimeToAnswerMS *int         `json:"timeToAnswerMs,omitempty"`
	AnsweredAt     *time.Time   `json:"answeredAt,omitempty"`
}

// Answered reports whether the entry has been answered. AnsweredAt is
// write-once; an answered entry never becomes unanswered again.
func (e Entry) Answered() bool {
	return e.AnsweredAt != nil
}

// QuestionSlot is one question produced by a Question Provider.
type QuestionSlot struct {
	Order int          `json:"order"`
	Type  QuestionType `json:"type"`
	Text  string       `json:"text"`
}

// CheckInState enumerates what the unlock projection can report.
type CheckInState string

const (
	StateIdle           CheckInState = "IDLE"
	StateLocked         CheckInState = "LOCKED"
	StateActiveQuestion CheckInState = "ACTIVE_QUESTION"
)

// CheckInStatus is the snapshot returned by the unlock projection.
// ExpiresAt is advisory for clients; the server does not enforce it.
type CheckInStatus struct {
	State        CheckInState `json:"state"`
	AssessmentID string       `json:"assessmentId,omitempty"`
	EntryID      string       `json:"entryId,omitempty"`
	Order        int          `json:"order,omitempty"`
	Type         QuestionType `json:"type,omitempty"`
	Text         string       `json:"text,omitempty"`
	UnlockAt     *time.Time   `json:"unlockAt,omitempty"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
}

// CompletionResult is the outcome the completion evaluator seals into an
// assessment.
type CompletionResult struct {
	Score          int       `json:"score"`
	Risk           RiskLevel `json:"risk"`
	Recommendation string    `json:"recommendation"`
}
