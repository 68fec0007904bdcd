// Package chat exposes the patient-facing REST endpoints for sending and
// reading turns.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AHasnain3/mamamia/internal/middleware"
	model "github.com/AHasnain3/mamamia/internal/model/chat"
	chatService "github.com/AHasnain3/mamamia/internal/service/chat"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

// Handler serves the non-streaming chat API.
type Handler struct {
	turns *chatService.Service
	store store.Store
}

// New creates the chat handler.
func New(turns *chatService.Service, st store.Store) *Handler {
	return &Handler{turns: turns, store: st}
}

// RegisterRoutes attaches chat routes. All of them run behind the patient
// resolver middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleSendTurn)
	r.Get("/chat", h.handleLoad)
	r.Get("/chat/sessions", h.handleListSessions)
}

type turnRequest struct {
	Date       string `json:"date"`
	Mode       string `json:"mode"`
	Text       string `json:"text"`
	SessionID  string `json:"sessionId"`
	NewChat    bool   `json:"newChat"`
	CreateOnly bool   `json:"createOnly"`
}

type turnResponse struct {
	Session       model.Session   `json:"session"`
	Messages      []model.Message `json:"messages"`
	LastMessageID string          `json:"lastMessageId,omitempty"`
}

func (h *Handler) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	patient, ok := middleware.PatientFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "patient not resolved")
		return
	}

	var payload turnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := chatService.TurnInput{
		DateYMD:    defaultDate(payload.Date),
		Mode:       model.ParseMode(strings.ToUpper(payload.Mode)),
		Text:       strings.TrimSpace(payload.Text),
		SessionID:  payload.SessionID,
		NewChat:    payload.NewChat,
		CreateOnly: payload.CreateOnly,
	}
	if !in.CreateOnly && in.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "empty text")
		return
	}

	result, err := h.turns.SendTurn(r.Context(), patient, in)
	if err != nil {
		respondTurnError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, turnResponse{
		Session:       result.Session,
		Messages:      visibleMessages(result.Messages),
		LastMessageID: result.LastMessageID,
	})
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	patient, ok := middleware.PatientFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "patient not resolved")
		return
	}

	in := chatService.TurnInput{
		DateYMD:    defaultDate(r.URL.Query().Get("date")),
		Mode:       parseOptionalMode(r.URL.Query().Get("mode")),
		SessionID:  r.URL.Query().Get("sessionId"),
		CreateOnly: true,
	}

	result, err := h.turns.SendTurn(r.Context(), patient, in)
	if err != nil {
		respondTurnError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, turnResponse{
		Session:  result.Session,
		Messages: visibleMessages(result.Messages),
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	patient, ok := middleware.PatientFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "patient not resolved")
		return
	}

	day, err := h.turns.DayFor(patient, defaultDate(r.URL.Query().Get("date")))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := h.store.ListSessionsForDay(r.Context(), patient.ID, day)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// visibleMessages hides the provider-proposed audit rows from patient views;
// the placeholder is all a patient sees for a turn under review.
func visibleMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Oversight == model.OversightAwaiting && m.Meta.ProviderProposed {
			continue
		}
		out = append(out, m)
	}
	return out
}

func parseOptionalMode(s string) model.Mode {
	if s == "" {
		return ""
	}
	return model.ParseMode(strings.ToUpper(s))
}

func defaultDate(s string) string {
	if s != "" {
		return s
	}
	return time.Now().UTC().Format("2006-01-02")
}

func respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrEmptyText):
		utils.RespondError(w, http.StatusBadRequest, "empty text")
	case errors.Is(err, chatService.ErrNotOwner):
		utils.RespondError(w, http.StatusForbidden, "session does not belong to patient")
	case errors.Is(err, store.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
	}
}
