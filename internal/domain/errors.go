package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAnEmployee is returned when the caller has no employee profile.
	ErrNotAnEmployee = errors.New("caller is not an employee")
	// ErrNoPendingAssessment indicates the employee has no check-in in flight.
	ErrNoPendingAssessment = errors.New("no pending assessment")
	// ErrEntryNotFound indicates a submitted entry ID is invalid.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrUnauthorized indicates the entry belongs to another employee's assessment.
	ErrUnauthorized = errors.New("entry does not belong to employee")
	// ErrDuplicateSubmission indicates the entry was already answered; nothing is mutated.
	ErrDuplicateSubmission = errors.New("entry already answered")
	// ErrInvalidInput indicates a malformed answer payload.
	ErrInvalidInput = errors.New("invalid answer input")
)

// AlreadyInProgressError is returned by the trigger when a PENDING assessment
// already exists; it carries the surviving assessment's id.
type AlreadyInProgressError struct {
	AssessmentID string
}

func (e *AlreadyInProgressError) Error() string {
	return fmt.Sprintf("check-in already in progress: %s", e.AssessmentID)
}

// AsAlreadyInProgress unwraps err into an AlreadyInProgressError if it is one.
func AsAlreadyInProgress(err error) (*AlreadyInProgressError, bool) {
	var aip *AlreadyInProgressError
	if errors.As(err, &aip) {
		return aip, true
	}
	return nil, false
}
