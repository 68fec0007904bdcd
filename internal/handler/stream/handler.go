// Package stream implements the incremental delivery pipeline: one turn in,
// an ordered sequence of newline-delimited JSON events out.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/AHasnain3/mamamia/internal/middleware"
	model "github.com/AHasnain3/mamamia/internal/model/chat"
	chatService "github.com/AHasnain3/mamamia/internal/service/chat"
	"github.com/AHasnain3/mamamia/internal/service/responder"
	"github.com/AHasnain3/mamamia/internal/service/triage"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

// Event is one line of the NDJSON stream. The sequence is always: "session",
// zero or more "delta" (safe path only), then exactly one of "final",
// "awaiting_provider", or "error" before the stream closes.
type Event struct {
	Type          string         `json:"type"`
	Session       *model.Session `json:"session,omitempty"`
	Text          string         `json:"text,omitempty"`
	MessageID     string         `json:"messageId,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
	TicketID      string         `json:"ticketId,omitempty"`
	PlaceholderID string         `json:"placeholderId,omitempty"`
	Message       string         `json:"message,omitempty"`
}

// Handler runs the streaming turn cycle.
type Handler struct {
	turns     *chatService.Service
	responder responder.Client
	streaming bool
}

// New creates the stream handler. streaming=false degrades deltas to a
// single chunk from the triage verdict.
func New(turns *chatService.Service, client responder.Client, streaming bool) *Handler {
	return &Handler{turns: turns, responder: client, streaming: streaming}
}

type streamRequest struct {
	Date      string `json:"date"`
	Mode      string `json:"mode"`
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	NewChat   bool   `json:"newChat"`
}

// HandleTurn serves POST /api/chat/stream.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	patient, ok := middleware.PatientFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "patient not resolved")
		return
	}

	var payload streamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "empty text")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	date := payload.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	in := chatService.TurnInput{
		DateYMD:   date,
		Mode:      model.ParseMode(strings.ToUpper(payload.Mode)),
		Text:      text,
		SessionID: payload.SessionID,
		NewChat:   payload.NewChat,
	}

	utils.SetupNDJSONHeaders(w)
	h.run(r.Context(), w, flusher, patient, in)
}

// run drives the event sequence. Internal failures always surface as a
// structured "error" event, never a silent close.
func (h *Handler) run(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, patient model.Patient, in chatService.TurnInput) {
	push := func(ev Event) { utils.SendNDJSON(w, flusher, ev) }

	sess, err := h.turns.ResolveSession(ctx, patient, in)
	if err != nil {
		push(Event{Type: "error", Message: "failed to resolve session"})
		log.Printf("[stream] session resolution failed: %v", err)
		return
	}
	push(Event{Type: "session", Session: &sess})

	// The patient's turn is durable before any delta is emitted.
	if _, err := h.turns.RecordPatientMessage(ctx, sess, in.Text); err != nil {
		push(Event{Type: "error", Message: "failed to save message"})
		log.Printf("[stream] patient message persist failed: %v", err)
		return
	}

	// Triage runs before streaming begins; an escalated turn never emits
	// a delta.
	result := h.turns.Classify(ctx, patient, sess, in.Text)

	if result.NeedsReview {
		esc, err := h.turns.Escalate(ctx, patient, sess, in, result)
		if err != nil {
			push(Event{Type: "error", Message: "failed to escalate for review"})
			log.Printf("[stream] escalation failed: %v", err)
			return
		}
		push(Event{
			Type:          "awaiting_provider",
			TicketID:      esc.Ticket.ID,
			PlaceholderID: esc.Placeholder.ID,
		})
		return
	}

	full := h.streamReply(ctx, push, patient, sess, in.Text, result)

	result.Reply = full
	saved, err := h.turns.DeliverSafe(ctx, sess, result)
	if err != nil {
		push(Event{Type: "error", Message: "failed to save reply"})
		log.Printf("[stream] reply persist failed: %v", err)
		return
	}
	push(Event{Type: "final", MessageID: saved.ID, SessionID: sess.ID})
}

// streamReply forwards responder tokens as deltas while accumulating the
// full text. Any stream failure falls back to the triage verdict's reply so
// the turn still completes.
func (h *Handler) streamReply(ctx context.Context, push func(Event), patient model.Patient, sess model.Session, text string, result triage.Result) string {
	if !h.streaming {
		push(Event{Type: "delta", Text: result.Reply})
		return result.Reply
	}

	tokens, err := h.responder.Stream(ctx, h.turns.Request(ctx, patient, sess, text))
	if err != nil {
		log.Printf("[stream] token stream unavailable, falling back to verdict reply: %v", err)
		push(Event{Type: "delta", Text: result.Reply})
		return result.Reply
	}
	defer tokens.Close()

	var full strings.Builder
	for {
		token, recvErr := tokens.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			log.Printf("[stream] token stream failed mid-reply: %v", recvErr)
			if full.Len() == 0 {
				push(Event{Type: "delta", Text: result.Reply})
				return result.Reply
			}
			break
		}
		if token == "" {
			continue
		}
		full.WriteString(token)
		push(Event{Type: "delta", Text: token})
	}

	if full.Len() == 0 {
		push(Event{Type: "delta", Text: result.Reply})
		return result.Reply
	}
	return full.String()
}
