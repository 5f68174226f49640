package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// AssessmentStore implements app.AssessmentRepository on Postgres. The
// one-pending-per-employee invariant lives in a partial unique index, and
// at-most-once answering lives in a conditional UPDATE, so both hold under
// concurrent requests without any in-process coordination.
type AssessmentStore struct {
	pool *pgxpool.Pool
}

func NewAssessmentStore(pool *pgxpool.Pool) *AssessmentStore {
	return &AssessmentStore{pool: pool}
}

func (s *AssessmentStore) CreatePending(ctx context.Context, assessment domain.Assessment, entries []domain.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trigger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO assessments (id, employee_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		assessment.ID, assessment.EmployeeID, assessment.Status, assessment.CreatedAt, assessment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the trigger race; report the surviving assessment.
			if existing, lookupErr := s.pendingID(ctx, assessment.EmployeeID); lookupErr == nil {
				return &domain.AlreadyInProgressError{AssessmentID: existing}
			}
			return &domain.AlreadyInProgressError{}
		}
		return fmt.Errorf("insert assessment: %w", err)
	}

	for _, entry := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO entries (id, assessment_id, ord, question_type, question_text, unlock_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ID, entry.AssessmentID, entry.Order, entry.Type, entry.Text, entry.UnlockAt,
		)
		if err != nil {
			return fmt.Errorf("insert entry %d: %w", entry.Order, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *AssessmentStore) PendingByEmployee(ctx context.Context, employeeID string) (domain.Assessment, []domain.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, employee_id, status, score, risk, recommendation, created_at, updated_at
		 FROM assessments WHERE employee_id=$1 AND status=$2`,
		employeeID, domain.StatusPending,
	)
	assessment, err := scanAssessment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, nil, domain.ErrNoPendingAssessment
	}
	if err != nil {
		return domain.Assessment{}, nil, fmt.Errorf("load pending assessment: %w", err)
	}

	entries, err := s.EntriesByAssessment(ctx, assessment.ID)
	if err != nil {
		return domain.Assessment{}, nil, err
	}
	return assessment, entries, nil
}

func (s *AssessmentStore) EntryByID(ctx context.Context, entryID string) (domain.Entry, domain.Assessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT e.id, e.assessment_id, e.ord, e.question_type, e.question_text, e.unlock_at,
		        e.answer_text, e.answer_value, e.time_to_answer_ms, e.answered_at,
		        a.id, a.employee_id, a.status, a.score, a.risk, a.recommendation, a.created_at, a.updated_at
		 FROM entries e JOIN assessments a ON a.id = e.assessment_id
		 WHERE e.id=$1`,
		entryID,
	)

	var entry domain.Entry
	var assessment domain.Assessment
	var score *int
	var risk, recommendation *string
	err := row.Scan(
		&entry.ID, &entry.AssessmentID, &entry.Order, &entry.Type, &entry.Text, &entry.UnlockAt,
		&entry.AnswerText, &entry.AnswerValue, &entry.TimeToAnswerMS, &entry.AnsweredAt,
		&assessment.ID, &assessment.EmployeeID, &assessment.Status, &score, &risk, &recommendation,
		&assessment.CreatedAt, &assessment.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entry{}, domain.Assessment{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.Entry{}, domain.Assessment{}, fmt.Errorf("load entry: %w", err)
	}
	applyCompletion(&assessment, score, risk, recommendation)
	return entry, assessment, nil
}

// RecordAnswer is the single conditional write behind at-most-once answering:
// the row only changes while answered_at is still NULL.
func (s *AssessmentStore) RecordAnswer(ctx context.Context, entryID string, record app.AnswerRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entries
		 SET answer_text=$2, answer_value=$3, time_to_answer_ms=$4, answered_at=$5
		 WHERE id=$1 AND answered_at IS NULL`,
		entryID, record.Text, record.Value, record.TimeToAnswerMS, record.AnsweredAt,
	)
	if err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entries WHERE id=$1)`, entryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	if !exists {
		return false, domain.ErrEntryNotFound
	}
	return false, nil
}

func (s *AssessmentStore) EntriesByAssessment(ctx context.Context, assessmentID string) ([]domain.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, assessment_id, ord, question_type, question_text, unlock_at,
		        answer_text, answer_value, time_to_answer_ms, answered_at
		 FROM entries WHERE assessment_id=$1 ORDER BY ord`,
		assessmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.Entry, 0, 3)
	for rows.Next() {
		var entry domain.Entry
		if err := rows.Scan(
			&entry.ID, &entry.AssessmentID, &entry.Order, &entry.Type, &entry.Text, &entry.UnlockAt,
			&entry.AnswerText, &entry.AnswerValue, &entry.TimeToAnswerMS, &entry.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *AssessmentStore) Complete(ctx context.Context, assessmentID string, result domain.CompletionResult, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE assessments
		 SET status=$2, score=$3, risk=$4, recommendation=$5, updated_at=$6
		 WHERE id=$1`,
		assessmentID, domain.StatusCompleted, result.Score, result.Risk, result.Recommendation, at,
	)
	if err != nil {
		return fmt.Errorf("complete assessment: %w", err)
	}
	return nil
}

func (s *AssessmentStore) CompletedByEmployee(ctx context.Context, employeeID string, limit int) ([]domain.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, status, score, risk, recommendation, created_at, updated_at
		 FROM assessments
		 WHERE employee_id=$1 AND status=$2
		 ORDER BY created_at DESC LIMIT $3`,
		employeeID, domain.StatusCompleted, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	assessments := make([]domain.Assessment, 0, limit)
	for rows.Next() {
		assessment, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		assessments = append(assessments, assessment)
	}
	return assessments, rows.Err()
}

func (s *AssessmentStore) AnswerTimes(ctx context.Context, employeeID string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.answered_at
		 FROM entries e JOIN assessments a ON a.id = e.assessment_id
		 WHERE a.employee_id=$1 AND e.answered_at IS NOT NULL`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("load answer times: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan answer time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (s *AssessmentStore) pendingID(ctx context.Context, employeeID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM assessments WHERE employee_id=$1 AND status=$2`,
		employeeID, domain.StatusPending,
	).Scan(&id)
	return id, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (domain.Assessment, error) {
	var assessment domain.Assessment
	var score *int
	var risk, recommendation *string
	err := row.Scan(
		&assessment.ID, &assessment.EmployeeID, &assessment.Status,
		&score, &risk, &recommendation,
		&assessment.CreatedAt, &assessment.UpdatedAt,
	)
	if err != nil {
		return domain.Assessment{}, err
	}
	applyCompletion(&assessment, score, risk, recommendation)
	return assessment, nil
}

func applyCompletion(assessment *domain.Assessment, score *int, risk, recommendation *string) {
	if score != nil {
		assessment.Score = *score
	}
	if risk != nil {
		assessment.Risk = domain.RiskLevel(*risk)
	}
	if recommendation != nil {
		assessment.Recommendation = *recommendation
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
