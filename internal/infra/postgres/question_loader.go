package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"wellbeing-checkin-service/internal/domain"
)

// QuestionLoader draws one random question template per type from Postgres,
// which is what rotates the questionnaire between check-ins. Types without
// templates are left out; the service fills them with defaults.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) Questions(ctx context.Context, _ string) ([]domain.QuestionSlot, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT question_type, text FROM (
		   SELECT question_type, text,
		          row_number() OVER (PARTITION BY question_type ORDER BY random()) AS rn
		   FROM question_templates
		 ) picked WHERE rn = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("load question templates: %w", err)
	}
	defer rows.Close()

	byType := make(map[domain.QuestionType]string)
	for rows.Next() {
		var qt domain.QuestionType
		var text string
		if err := rows.Scan(&qt, &text); err != nil {
			return nil, fmt.Errorf("scan question template: %w", err)
		}
		byType[qt] = text
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slots := make([]domain.QuestionSlot, 0, len(domain.QuestionTypes))
	for i, qt := range domain.QuestionTypes {
		text, ok := byType[qt]
		if !ok {
			continue
		}
		slots = append(slots, domain.QuestionSlot{Order: i + 1, Type: qt, Text: text})
	}
	return slots, nil
}

// Directory checks the employees table for the NotAnEmployee precondition.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) Exists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM employees WHERE id=$1)`, employeeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup employee: %w", err)
	}
	return exists, nil
}
