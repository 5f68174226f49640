package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// AssessmentStore is an in-memory implementation of app.AssessmentRepository.
// The store mutex serializes trigger-vs-trigger and answer-vs-answer races,
// which is what the Postgres implementation gets from its partial unique index
// and conditional update.
type AssessmentStore struct {
	mu          sync.RWMutex
	assessments map[string]*domain.Assessment
	entries     map[string]*domain.Entry
	byOwner     map[string][]string
}

func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{
		assessments: make(map[string]*domain.Assessment),
		entries:     make(map[string]*domain.Entry),
		byOwner:     make(map[string][]string),
	}
}

func (s *AssessmentStore) CreatePending(_ context.Context, assessment domain.Assessment, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock so concurrent triggers cannot both insert.
	for _, id := range s.byOwner[assessment.EmployeeID] {
		if existing := s.assessments[id]; existing.Status == domain.StatusPending {
			return &domain.AlreadyInProgressError{AssessmentID: existing.ID}
		}
	}

	stored := assessment
	s.assessments[assessment.ID] = &stored
	s.byOwner[assessment.EmployeeID] = append(s.byOwner[assessment.EmployeeID], assessment.ID)
	for _, entry := range entries {
		e := entry
		s.entries[entry.ID] = &e
	}
	return nil
}

func (s *AssessmentStore) PendingByEmployee(_ context.Context, employeeID string) (domain.Assessment, []domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.byOwner[employeeID] {
		if a := s.assessments[id]; a.Status == domain.StatusPending {
			return *a, s.entriesOfLocked(id), nil
		}
	}
	return domain.Assessment{}, nil, domain.ErrNoPendingAssessment
}

func (s *AssessmentStore) EntryByID(_ context.Context, entryID string) (domain.Entry, domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return domain.Entry{}, domain.Assessment{}, domain.ErrEntryNotFound
	}
	assessment, ok := s.assessments[entry.AssessmentID]
	if !ok {
		return domain.Entry{}, domain.Assessment{}, domain.ErrEntryNotFound
	}
	return *entry, *assessment, nil
}

// RecordAnswer is the conditional write: it applies only when the entry is
// still unanswered and reports whether it did.
func (s *AssessmentStore) RecordAnswer(_ context.Context, entryID string, record app.AnswerRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return false, domain.ErrEntryNotFound
	}
	if entry.AnsweredAt != nil {
		return false, nil
	}
	entry.AnswerText = record.Text
	entry.AnswerValue = record.Value
	entry.TimeToAnswerMS = record.TimeToAnswerMS
	answeredAt := record.AnsweredAt
	entry.AnsweredAt = &answeredAt
	return true, nil
}

func (s *AssessmentStore) EntriesByAssessment(_ context.Context, assessmentID string) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesOfLocked(assessmentID), nil
}

func (s *AssessmentStore) Complete(_ context.Context, assessmentID string, result domain.CompletionResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assessment, ok := s.assessments[assessmentID]
	if !ok {
		return fmt.Errorf("assessment %s not found", assessmentID)
	}
	assessment.Status = domain.StatusCompleted
	assessment.Score = result.Score
	assessment.Risk = result.Risk
	assessment.Recommendation = result.Recommendation
	assessment.UpdatedAt = at
	return nil
}

func (s *AssessmentStore) CompletedByEmployee(_ context.Context, employeeID string, limit int) ([]domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed := make([]domain.Assessment, 0)
	for _, id := range s.byOwner[employeeID] {
		if a := s.assessments[id]; a.Status == domain.StatusCompleted {
			completed = append(completed, *a)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	return completed, nil
}

func (s *AssessmentStore) AnswerTimes(_ context.Context, employeeID string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make(map[string]struct{})
	for _, id := range s.byOwner[employeeID] {
		owned[id] = struct{}{}
	}
	times := make([]time.Time, 0)
	for _, entry := range s.entries {
		if _, ok := owned[entry.AssessmentID]; !ok {
			continue
		}
		if entry.AnsweredAt != nil {
			times = append(times, *entry.AnsweredAt)
		}
	}
	return times, nil
}

func (s *AssessmentStore) entriesOfLocked(assessmentID string) []domain.Entry {
	entries := make([]domain.Entry, 0, 3)
	for _, entry := range s.entries {
		if entry.AssessmentID == assessmentID {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })
	return entries
}
