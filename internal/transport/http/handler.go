package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// employeeHeader carries the caller's employee id, set by the upstream auth
// gateway. A request without it has no employee profile.
const employeeHeader = "X-Employee-ID"

// Handler exposes the check-in engine over plain JSON endpoints.
type Handler struct {
	service *app.CheckInService
}

func NewHandler(service *app.CheckInService) *Handler {
	return &Handler{service: service}
}

// Register wires the check-in routes into the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/check-in/trigger", h.trigger)
	mux.HandleFunc("/check-in/status", h.status)
	mux.HandleFunc("/check-in/streak", h.streak)
	mux.HandleFunc("/check-in/entry/", h.answer)
	mux.HandleFunc("/check-in/employee/", h.history)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	assessmentID, err := h.service.Trigger(r.Context(), r.Header.Get(employeeHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assessmentId": assessmentID})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status, err := h.service.Status(r.Context(), r.Header.Get(employeeHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	days, err := h.service.Streak(r.Context(), r.Header.Get(employeeHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"days": days})
}

type answerRequest struct {
	AnswerText   *string      `json:"answerText"`
	AnswerValue  *json.Number `json:"answerValue"`
	TimeToAnswer *json.Number `json:"timeToAnswer"`
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Path shape: /check-in/entry/{entryId}/answer
	rest := strings.TrimPrefix(r.URL.Path, "/check-in/entry/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "answer" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	entryID := parts[0]

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	answer, timeToAnswer, err := buildAnswer(req)
	if err != nil {
		writeError(w, err)
		return
	}

	completed, err := h.service.Answer(r.Context(), entryID, r.Header.Get(employeeHeader), answer, timeToAnswer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	employeeID := strings.TrimPrefix(r.URL.Path, "/check-in/employee/")
	if employeeID == "" || strings.Contains(employeeID, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	assessments, err := h.service.History(r.Context(), employeeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assessments": assessments})
}

// buildAnswer maps the wire payload onto the tagged Answer variant: exactly
// one of text or value, or neither.
func buildAnswer(req answerRequest) (domain.Answer, *int, error) {
	var timeToAnswer *int
	if req.TimeToAnswer != nil {
		ms, err := intFromNumber(*req.TimeToAnswer)
		if err != nil {
			return domain.Answer{}, nil, domain.ErrInvalidInput
		}
		timeToAnswer = &ms
	}

	switch {
	case req.AnswerText != nil && req.AnswerValue != nil:
		return domain.Answer{}, nil, domain.ErrInvalidInput
	case req.AnswerValue != nil:
		value, err := intFromNumber(*req.AnswerValue)
		if err != nil {
			return domain.Answer{}, nil, domain.ErrInvalidInput
		}
		return domain.ScaleAnswer(value), timeToAnswer, nil
	case req.AnswerText != nil:
		return domain.TextAnswer(*req.AnswerText), timeToAnswer, nil
	default:
		return domain.EmptyAnswer(), timeToAnswer, nil
	}
}

func intFromNumber(n json.Number) (int, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	AssessmentID string `json:"assessmentId,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	if aip, ok := domain.AsAlreadyInProgress(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Code:         "ALREADY_IN_PROGRESS",
			Message:      aip.Error(),
			AssessmentID: aip.AssessmentID,
		}})
		return
	}

	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
		status, code = http.StatusNotFound, "ENTRY_NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		status, code = http.StatusBadRequest, "DUPLICATE_SUBMISSION"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrNotAnEmployee):
		status, code = http.StatusBadRequest, "NOT_AN_EMPLOYEE"
	default:
		log.Printf("check-in request failed: %v", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
