package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
	"wellbeing-checkin-service/internal/infra/memory"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.AssessmentStore
	service *app.CheckInService
	now     time.Time
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewAssessmentStore(),
		now:   testStart,
	}
	provider := memory.NewStaticQuestionProvider(map[domain.QuestionType]string{
		domain.QuestionFact:    "What shipped yesterday?",
		domain.QuestionFeeling: "How tired are you, 0 to 5?",
	})
	opts = append([]app.Option{app.WithClock(func() time.Time { return f.now })}, opts...)
	f.service = app.NewCheckInService(f.store, provider, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) entries(t *testing.T, assessmentID string) []domain.Entry {
	t.Helper()
	entries, err := f.store.EntriesByAssessment(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	return entries
}

func TestTriggerSchedulesEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	entries := f.entries(t, id)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].UnlockAt.Equal(testStart) {
		t.Fatalf("first entry must unlock at creation time, got %v", entries[0].UnlockAt)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].UnlockAt.Before(entries[i-1].UnlockAt) {
			t.Fatalf("unlock times must be non-decreasing: %v before %v", entries[i].UnlockAt, entries[i-1].UnlockAt)
		}
	}
	if entries[1].UnlockAt.Sub(entries[0].UnlockAt) != time.Hour {
		t.Fatalf("expected 1h cadence, got %v", entries[1].UnlockAt.Sub(entries[0].UnlockAt))
	}
	want := []domain.QuestionType{domain.QuestionFact, domain.QuestionFeeling, domain.QuestionBarrier}
	for i, entry := range entries {
		if entry.Type != want[i] {
			t.Fatalf("entry %d: expected type %s, got %s", i+1, want[i], entry.Type)
		}
	}
	// The provider left BARRIER empty, so the default text fills it.
	if entries[2].Text == "" {
		t.Fatalf("expected default barrier question text")
	}
}

func TestTriggerWhilePendingReturnsExistingID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	_, err = f.service.Trigger(ctx, "emp-1")
	aip, ok := domain.AsAlreadyInProgress(err)
	if !ok {
		t.Fatalf("expected AlreadyInProgressError, got %v", err)
	}
	if aip.AssessmentID != first {
		t.Fatalf("expected original id %s, got %s", first, aip.AssessmentID)
	}
}

func TestStatusProgression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateIdle {
		t.Fatalf("expected IDLE before trigger, got %s", status.State)
	}

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	status, err = f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateActiveQuestion || status.Order != 1 {
		t.Fatalf("expected active question 1, got %+v", status)
	}
	if status.ExpiresAt == nil || !status.ExpiresAt.Equal(f.now.Add(30*time.Second)) {
		t.Fatalf("expected 30s advisory expiry, got %v", status.ExpiresAt)
	}

	if _, err := f.service.Answer(ctx, status.EntryID, "emp-1", domain.TextAnswer("shipped the report"), nil); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// Entry 2 unlocks an hour after creation.
	status, err = f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateLocked || status.Order != 2 {
		t.Fatalf("expected locked question 2, got %+v", status)
	}
	entries := f.entries(t, id)
	if status.UnlockAt == nil || !status.UnlockAt.Equal(entries[1].UnlockAt) {
		t.Fatalf("expected unlock time %v, got %v", entries[1].UnlockAt, status.UnlockAt)
	}

	f.advance(time.Hour)
	status, err = f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateActiveQuestion || status.Order != 2 {
		t.Fatalf("expected active question 2 after an hour, got %+v", status)
	}
}

func TestAnswerFlowCompletesWithBurnoutRisk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	entries := f.entries(t, id)

	ms := 1200
	if completed, err := f.service.Answer(ctx, entries[0].ID, "emp-1", domain.TextAnswer("wrapped up the audit"), &ms); err != nil || completed {
		t.Fatalf("answer 1: completed=%v err=%v", completed, err)
	}
	if completed, err := f.service.Answer(ctx, entries[1].ID, "emp-1", domain.ScaleAnswer(6), nil); err != nil || completed {
		t.Fatalf("answer 2: completed=%v err=%v", completed, err)
	}
	completed, err := f.service.Answer(ctx, entries[2].ID, "emp-1", domain.EmptyAnswer(), nil)
	if err != nil {
		t.Fatalf("answer 3: %v", err)
	}
	if !completed {
		t.Fatalf("expected completion on last answer")
	}

	history, err := f.service.History(ctx, "emp-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 completed assessment, got %d", len(history))
	}
	got := history[0]
	if got.Status != domain.StatusCompleted || got.Score != 40 || got.Risk != domain.RiskOfBurnout {
		t.Fatalf("expected sealed burnout result, got %+v", got)
	}

	status, err := f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateIdle {
		t.Fatalf("expected IDLE after completion, got %s", status.State)
	}
}

func TestDuplicateSubmissionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	entries := f.entries(t, id)

	if _, err := f.service.Answer(ctx, entries[1].ID, "emp-1", domain.ScaleAnswer(2), nil); err != nil {
		t.Fatalf("answer: %v", err)
	}
	firstState := f.entries(t, id)[1]

	_, err = f.service.Answer(ctx, entries[1].ID, "emp-1", domain.ScaleAnswer(5), nil)
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected DuplicateSubmission, got %v", err)
	}

	after := f.entries(t, id)[1]
	if *after.AnswerValue != *firstState.AnswerValue || !after.AnsweredAt.Equal(*firstState.AnsweredAt) {
		t.Fatalf("duplicate submission mutated state: %+v vs %+v", after, firstState)
	}
}

func TestAnswerErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	entries := f.entries(t, id)

	if _, err := f.service.Answer(ctx, "missing", "emp-1", domain.EmptyAnswer(), nil); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected EntryNotFound, got %v", err)
	}
	if _, err := f.service.Answer(ctx, entries[0].ID, "emp-2", domain.EmptyAnswer(), nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	negative := -1
	if _, err := f.service.Answer(ctx, entries[0].ID, "emp-1", domain.EmptyAnswer(), &negative); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for negative latency, got %v", err)
	}
}

func TestStrictScaleRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.WithStrictScale())

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	entries := f.entries(t, id)

	if _, err := f.service.Answer(ctx, entries[1].ID, "emp-1", domain.ScaleAnswer(6), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput under strict scale, got %v", err)
	}
	if _, err := f.service.Answer(ctx, entries[1].ID, "emp-1", domain.ScaleAnswer(5), nil); err != nil {
		t.Fatalf("in-range scale rejected: %v", err)
	}
}

func TestStatusSelfHealsAllAnsweredPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Write answers straight through the repository so the assessment is left
	// all-answered but still PENDING, as a crashed request would.
	value := 4
	for _, entry := range f.entries(t, id) {
		record := app.AnswerRecord{AnsweredAt: f.now}
		if entry.Order == 2 {
			record.Value = &value
		}
		if _, err := f.store.RecordAnswer(ctx, entry.ID, record); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	status, err := f.service.Status(ctx, "emp-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != domain.StateIdle {
		t.Fatalf("expected IDLE after repair, got %s", status.State)
	}

	history, err := f.service.History(ctx, "emp-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Risk != domain.RiskTired || history[0].Score != 60 {
		t.Fatalf("expected repaired TIRED completion, got %+v", history)
	}
}

func TestExpiryPolicyUnblocksTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.WithExpiryPolicy(app.MaxAge(48*time.Hour)))

	first, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	f.advance(72 * time.Hour)
	second, err := f.service.Trigger(ctx, "emp-1")
	if err != nil {
		t.Fatalf("expected abandoned assessment to be sealed, got %v", err)
	}
	if second == first {
		t.Fatalf("expected a fresh assessment id")
	}

	history, err := f.service.History(ctx, "emp-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != first {
		t.Fatalf("expected abandoned assessment sealed into history, got %+v", history)
	}
}

func TestMissingEmployeeRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.Trigger(ctx, ""); !errors.Is(err, domain.ErrNotAnEmployee) {
		t.Fatalf("expected NotAnEmployee, got %v", err)
	}
}
