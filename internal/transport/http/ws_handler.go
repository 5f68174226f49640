package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"wellbeing-checkin-service/internal/app"
	"wellbeing-checkin-service/internal/domain"
)

// WSHandler serves the live check-in stream: clients get their current status
// on connect, answer over the socket, and receive the refreshed status after
// every write instead of re-polling the REST surface.
type WSHandler struct {
	service  *app.CheckInService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.CheckInService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsAnswerPayload struct {
	EntryID      string       `json:"entryId"`
	AnswerText   *string      `json:"answerText"`
	AnswerValue  *json.Number `json:"answerValue"`
	TimeToAnswer *json.Number `json:"timeToAnswer"`
}

type wsAnswerResult struct {
	EntryID   string `json:"entryId"`
	Completed bool   `json:"completed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// check-in use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		http.Error(w, "missing employeeId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if !h.pushStatus(conn, r, employeeID) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "status":
			if !h.pushStatus(conn, r, employeeID) {
				return
			}
		case "answer":
			var payload wsAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.pushError(conn, domain.ErrInvalidInput)
				continue
			}
			answer, timeToAnswer, err := buildAnswer(answerRequest{
				AnswerText:   payload.AnswerText,
				AnswerValue:  payload.AnswerValue,
				TimeToAnswer: payload.TimeToAnswer,
			})
			if err != nil {
				h.pushError(conn, err)
				continue
			}
			completed, err := h.service.Answer(r.Context(), payload.EntryID, employeeID, answer, timeToAnswer)
			if err != nil {
				h.pushError(conn, err)
				continue
			}
			if err := conn.WriteJSON(outboundMessage[wsAnswerResult]{
				Type:    "answerResult",
				Payload: wsAnswerResult{EntryID: payload.EntryID, Completed: completed},
			}); err != nil {
				return
			}
			if !h.pushStatus(conn, r, employeeID) {
				return
			}
		default:
			h.pushError(conn, domain.ErrInvalidInput)
		}
	}
}

func (h *WSHandler) pushStatus(conn *websocket.Conn, r *http.Request, employeeID string) bool {
	status, err := h.service.Status(r.Context(), employeeID)
	if err != nil {
		h.pushError(conn, err)
		return false
	}
	if err := conn.WriteJSON(outboundMessage[domain.CheckInStatus]{Type: "status", Payload: status}); err != nil {
		log.Printf("ws write error: %v", err)
		return false
	}
	return true
}

func (h *WSHandler) pushError(conn *websocket.Conn, err error) {
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
		code = "ENTRY_NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		code = "UNAUTHORIZED"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		code = "DUPLICATE_SUBMISSION"
	case errors.Is(err, domain.ErrInvalidInput):
		code = "INVALID_INPUT"
	case errors.Is(err, domain.ErrNotAnEmployee):
		code = "NOT_AN_EMPLOYEE"
	}
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}})
}
