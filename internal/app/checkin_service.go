package app

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"wellbeing-checkin-service/internal/domain"
)

// AssessmentRepository abstracts how assessments and their entries are stored
// (in-memory, Postgres, etc). RecordAnswer must be a single conditional write:
// it applies only when the entry is still unanswered and reports whether it
// did, which is what makes duplicate submissions at-most-once under races.
type AssessmentRepository interface {
	CreatePending(ctx context.Context, assessment domain.Assessment, entries []domain.Entry) error
	PendingByEmployee(ctx context.Context, employeeID string) (domain.Assessment, []domain.Entry, error)
	EntryByID(ctx context.Context, entryID string) (domain.Entry, domain.Assessment, error)
	RecordAnswer(ctx context.Context, entryID string, record AnswerRecord) (bool, error)
	EntriesByAssessment(ctx context.Context, assessmentID string) ([]domain.Entry, error)
	Complete(ctx context.Context, assessmentID string, result domain.CompletionResult, at time.Time) error
	CompletedByEmployee(ctx context.Context, employeeID string, limit int) ([]domain.Assessment, error)
	AnswerTimes(ctx context.Context, employeeID string) ([]time.Time, error)
}

// QuestionProvider supplies one question per required type for an employee.
// Missing slots fall back to built-in defaults; a failing provider degrades to
// the defaults entirely.
type QuestionProvider interface {
	Questions(ctx context.Context, employeeID string) ([]domain.QuestionSlot, error)
}

// Directory answers whether a caller has an employee profile. A nil directory
// trusts the upstream auth gateway.
type Directory interface {
	Exists(ctx context.Context, employeeID string) (bool, error)
}

// ExpiryPolicy decides whether a pending assessment has been abandoned. The
// default (nil) never expires anything: an abandoned check-in stays PENDING.
type ExpiryPolicy interface {
	Abandoned(createdAt, now time.Time) bool
}

// MaxAge expires pending assessments older than the duration.
type MaxAge time.Duration

func (m MaxAge) Abandoned(createdAt, now time.Time) bool {
	return now.Sub(createdAt) > time.Duration(m)
}

// AnswerRecord is the persisted form of a validated answer.
type AnswerRecord struct {
	Text           *string
	Value          *int
	TimeToAnswerMS *int
	AnsweredAt     time.Time
}

const (
	// DefaultInterval spreads entry unlock times across a work session.
	DefaultInterval = time.Hour
	// activeQuestionTTL is the advisory client-side expiry attached to an
	// active question; the server does not enforce it.
	activeQuestionTTL = 30 * time.Second
	// historyLimit caps the completed-assessment listing.
	historyLimit = 20
)

// defaultQuestions backs any slot the provider leaves empty.
var defaultQuestions = map[domain.QuestionType]string{
	domain.QuestionFact:    "What did you get done since your last check-in?",
	domain.QuestionFeeling: "How drained do you feel right now, from 0 to 5?",
	domain.QuestionBarrier: "Is anything blocking you at work today?",
}

// CheckInService contains the check-in engine use cases. It holds no state of
// its own; every call is an independent unit of work against the repository.
type CheckInService struct {
	repo        AssessmentRepository
	provider    QuestionProvider
	directory   Directory
	expiry      ExpiryPolicy
	interval    time.Duration
	strictScale bool
	now         func() time.Time
}

// Option configures a CheckInService.
type Option func(*CheckInService)

// WithDirectory enables the NotAnEmployee precondition check.
func WithDirectory(d Directory) Option {
	return func(s *CheckInService) { s.directory = d }
}

// WithInterval overrides the unlock cadence between entries.
func WithInterval(d time.Duration) Option {
	return func(s *CheckInService) { s.interval = d }
}

// WithExpiryPolicy installs an abandonment policy for pending assessments.
func WithExpiryPolicy(p ExpiryPolicy) Option {
	return func(s *CheckInService) { s.expiry = p }
}

// WithStrictScale rejects scale answers outside [0,5] as invalid input.
func WithStrictScale() Option {
	return func(s *CheckInService) { s.strictScale = true }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CheckInService) { s.now = now }
}

func NewCheckInService(repo AssessmentRepository, provider QuestionProvider, opts ...Option) *CheckInService {
	s := &CheckInService{
		repo:     repo,
		provider: provider,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger creates a new pending assessment with scheduled entries and returns
// its id. At most one assessment per employee is PENDING at any instant;
// triggering while one exists fails with AlreadyInProgressError carrying the
// existing id.
func (s *CheckInService) Trigger(ctx context.Context, employeeID string) (string, error) {
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return "", err
	}

	now := s.now()
	pending, entries, err := s.repo.PendingByEmployee(ctx, employeeID)
	switch {
	case err == nil:
		if s.expiry == nil || !s.expiry.Abandoned(pending.CreatedAt, now) {
			return "", &domain.AlreadyInProgressError{AssessmentID: pending.ID}
		}
		// Abandoned per policy: seal it from whatever was answered, then
		// fall through to create a fresh assessment.
		if err := s.seal(ctx, pending.ID, entries); err != nil {
			return "", err
		}
	case errors.Is(err, domain.ErrNoPendingAssessment):
		// nothing in flight
	default:
		return "", err
	}

	assessment := domain.Assessment{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	scheduled := make([]domain.Entry, 0, len(domain.QuestionTypes))
	for i, slot := range s.questions(ctx, employeeID) {
		scheduled = append(scheduled, domain.Entry{
			ID:           uuid.NewString(),
			AssessmentID: assessment.ID,
			Order:        i + 1,
			Type:         slot.Type,
			Text:         slot.Text,
			UnlockAt:     now.Add(time.Duration(i) * s.interval),
		})
	}

	if err := s.repo.CreatePending(ctx, assessment, scheduled); err != nil {
		return "", err
	}
	return assessment.ID, nil
}

// questions resolves one question per required type, falling back to the
// built-in default text for any slot the provider misses.
func (s *CheckInService) questions(ctx context.Context, employeeID string) []domain.QuestionSlot {
	byType := make(map[domain.QuestionType]string)
	if s.provider != nil {
		slots, err := s.provider.Questions(ctx, employeeID)
		if err != nil {
			log.Printf("question provider failed, using defaults: %v", err)
		}
		for _, slot := range slots {
			if slot.Text != "" {
				byType[slot.Type] = slot.Text
			}
		}
	}

	resolved := make([]domain.QuestionSlot, 0, len(domain.QuestionTypes))
	for i, qt := range domain.QuestionTypes {
		text, ok := byType[qt]
		if !ok {
			text = defaultQuestions[qt]
		}
		resolved = append(resolved, domain.QuestionSlot{Order: i + 1, Type: qt, Text: text})
	}
	return resolved
}

// Status is the unlock projection: it reports which entry (if any) is
// currently answerable, computed lazily from wall-clock time. Its only side
// effect is a defensive repair: an assessment left all-answered-but-PENDING by
// a prior failure is force-completed and reported as IDLE.
func (s *CheckInService) Status(ctx context.Context, employeeID string) (domain.CheckInStatus, error) {
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return domain.CheckInStatus{}, err
	}

	pending, entries, err := s.repo.PendingByEmployee(ctx, employeeID)
	if errors.Is(err, domain.ErrNoPendingAssessment) {
		return domain.CheckInStatus{State: domain.StateIdle}, nil
	}
	if err != nil {
		return domain.CheckInStatus{}, err
	}

	next, ok := firstUnanswered(entries)
	if !ok {
		if err := s.seal(ctx, pending.ID, entries); err != nil {
			return domain.CheckInStatus{}, err
		}
		return domain.CheckInStatus{State: domain.StateIdle}, nil
	}

	now := s.now()
	if now.Before(next.UnlockAt) {
		unlockAt := next.UnlockAt
		return domain.CheckInStatus{
			State:        domain.StateLocked,
			AssessmentID: pending.ID,
			EntryID:      next.ID,
			Order:        next.Order,
			UnlockAt:     &unlockAt,
		}, nil
	}

	expiresAt := now.Add(activeQuestionTTL)
	return domain.CheckInStatus{
		State:        domain.StateActiveQuestion,
		AssessmentID: pending.ID,
		EntryID:      next.ID,
		Order:        next.Order,
		Type:         next.Type,
		Text:         next.Text,
		ExpiresAt:    &expiresAt,
	}, nil
}

// Answer validates and persists a single answer exactly once. When the write
// makes the last entry answered, the completion evaluator seals the assessment
// within the same logical operation; the returned bool reports that.
func (s *CheckInService) Answer(ctx context.Context, entryID, employeeID string, answer domain.Answer, timeToAnswerMS *int) (bool, error) {
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return false, err
	}

	entry, assessment, err := s.repo.EntryByID(ctx, entryID)
	if err != nil {
		return false, err
	}
	if assessment.EmployeeID != employeeID {
		return false, domain.ErrUnauthorized
	}
	if entry.Answered() {
		return false, domain.ErrDuplicateSubmission
	}
	if timeToAnswerMS != nil && *timeToAnswerMS < 0 {
		return false, domain.ErrInvalidInput
	}

	record := AnswerRecord{TimeToAnswerMS: timeToAnswerMS, AnsweredAt: s.now()}
	switch answer.Kind() {
	case domain.AnswerText:
		text, _ := answer.Text()
		record.Text = &text
	case domain.AnswerScale:
		value, _ := answer.Scale()
		if s.strictScale && (value < 0 || value > 5) {
			return false, domain.ErrInvalidInput
		}
		record.Value = &value
	}

	applied, err := s.repo.RecordAnswer(ctx, entryID, record)
	if err != nil {
		return false, err
	}
	if !applied {
		// Lost a race with a concurrent duplicate; the first write stands.
		return false, domain.ErrDuplicateSubmission
	}

	entries, err := s.repo.EntriesByAssessment(ctx, assessment.ID)
	if err != nil {
		return false, err
	}
	if _, unanswered := firstUnanswered(entries); unanswered {
		return false, nil
	}
	if err := s.seal(ctx, assessment.ID, entries); err != nil {
		return false, err
	}
	return true, nil
}

// History returns the employee's most recent completed assessments, newest
// first, capped at 20.
func (s *CheckInService) History(ctx context.Context, employeeID string) ([]domain.Assessment, error) {
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.repo.CompletedByEmployee(ctx, employeeID, historyLimit)
}

// Streak derives the consecutive-participation-day metric from every answer
// the employee has ever recorded. Purely derived, never persisted.
func (s *CheckInService) Streak(ctx context.Context, employeeID string) (int, error) {
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return 0, err
	}
	times, err := s.repo.AnswerTimes(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	return StreakDays(times, s.now()), nil
}

// seal runs the completion evaluator over the entries and writes the result.
func (s *CheckInService) seal(ctx context.Context, assessmentID string, entries []domain.Entry) error {
	result := EvaluateCompletion(entries)
	return s.repo.Complete(ctx, assessmentID, result, s.now())
}

func (s *CheckInService) checkEmployee(ctx context.Context, employeeID string) error {
	if employeeID == "" {
		return domain.ErrNotAnEmployee
	}
	if s.directory == nil {
		return nil
	}
	ok, err := s.directory.Exists(ctx, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotAnEmployee
	}
	return nil
}

// firstUnanswered returns the lowest-order entry without an answer.
func firstUnanswered(entries []domain.Entry) (domain.Entry, bool) {
	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for _, e := range sorted {
		if !e.Answered() {
			return e, true
		}
	}
	return domain.Entry{}, false
}
