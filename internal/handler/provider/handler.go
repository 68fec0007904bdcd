// Package provider exposes the clinician-side API: the pending review queue,
// the approval entry points, and the live ticket feed.
package provider

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AHasnain3/mamamia/internal/service/approval"
	"github.com/AHasnain3/mamamia/internal/service/notify"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

// Handler serves the provider API.
type Handler struct {
	store    store.Store
	approval *approval.Service
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// New creates the provider handler.
func New(st store.Store, approvalSvc *approval.Service, hub *notify.Hub) *Handler {
	return &Handler{
		store:    st,
		approval: approvalSvc,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes attaches provider routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/provider/tickets/pending", h.handlePending)
	r.Post("/provider/tickets/{ticketID}/approve", h.handleApproveTicket)
	r.Post("/provider/drafts/approve", h.handleApproveDraft)
	r.Get("/provider/feed", h.handleFeed)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.store.PendingTickets(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list pending tickets")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

type approveTicketRequest struct {
	ProviderName string `json:"providerName"`
	ModifiedText string `json:"modifiedText"`
}

func (h *Handler) handleApproveTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	// The body is optional; an empty body approves the latest draft verbatim.
	// A present but malformed body is rejected, not coerced.
	var payload approveTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.approve(w, r, approval.Input{
		TicketID:     ticketID,
		EditedText:   strings.TrimSpace(payload.ModifiedText),
		ProviderName: payload.ProviderName,
	})
}

type approveDraftRequest struct {
	TicketID     string `json:"ticketId"`
	DraftID      string `json:"draftId"`
	DraftText    string `json:"draftText"`
	ProviderName string `json:"providerName"`
}

func (h *Handler) handleApproveDraft(w http.ResponseWriter, r *http.Request) {
	var payload approveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Accept ids from the querystring as well as the body.
	if payload.TicketID == "" {
		payload.TicketID = r.URL.Query().Get("ticketId")
	}
	if payload.DraftID == "" {
		payload.DraftID = r.URL.Query().Get("draftId")
	}

	h.approve(w, r, approval.Input{
		TicketID:     payload.TicketID,
		DraftID:      payload.DraftID,
		EditedText:   strings.TrimSpace(payload.DraftText),
		ProviderName: payload.ProviderName,
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, in approval.Input) {
	outcome, err := h.approval.Approve(r.Context(), in)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"ticketId":  outcome.TicketID,
		"messageId": outcome.MessageID,
		"sessionId": outcome.SessionID,
		"modified":  outcome.Modified,
	})
}

func respondApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrNoTarget):
		utils.RespondError(w, http.StatusBadRequest, "ticketId or draftId required")
	case errors.Is(err, approval.ErrEmptyDraft):
		utils.RespondError(w, http.StatusBadRequest, "no draft text")
	case errors.Is(err, store.ErrTicketNotFound):
		utils.RespondError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, store.ErrDraftNotFound):
		utils.RespondError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, approval.ErrTicketAnswered):
		utils.RespondError(w, http.StatusConflict, "ticket already answered")
	case errors.Is(err, approval.ErrNoDeliverableSession):
		utils.RespondError(w, http.StatusConflict, "no session to deliver message")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "approval failed")
	}
}

// handleFeed upgrades to a websocket and pushes ticket lifecycle events until
// the client disconnects.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Drain client frames so pings and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("[feed] write failed: %v", err)
				return
			}
		}
	}
}
