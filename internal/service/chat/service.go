// Package chat implements the per-turn state machine: record the patient
// message, triage it, then either deliver the assistant reply directly or
// open a relay ticket and leave a placeholder for the provider to resolve.
package chat

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	model "github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	"github.com/AHasnain3/mamamia/internal/service/notify"
	"github.com/AHasnain3/mamamia/internal/service/responder"
	"github.com/AHasnain3/mamamia/internal/service/session"
	"github.com/AHasnain3/mamamia/internal/service/triage"
	"github.com/AHasnain3/mamamia/internal/store"
)

var (
	ErrEmptyText = errors.New("empty text")
	ErrNotOwner  = errors.New("session does not belong to patient")
)

// PlaceholderText is the only content a patient-facing view renders for an
// escalated turn until a provider approves the reply.
const PlaceholderText = "Message awaiting provider approval."

// contextWindow is how many trailing messages are snapshotted for triage and
// for the ticket's provider-facing context.
const contextWindow = 12

// snapshotContentCap truncates snapshot entries so tickets stay small.
const snapshotContentCap = 1000

// TurnInput is one send-turn request, after patient resolution.
type TurnInput struct {
	DateYMD    string
	Mode       model.Mode
	Text       string
	SessionID  string
	NewChat    bool
	CreateOnly bool
}

// TurnResult reports the outcome of a turn.
type TurnResult struct {
	Session       model.Session
	Messages      []model.Message
	LastMessageID string
	Escalated     bool
	TicketID      string
	PlaceholderID string
}

// Service wires the session manager, message store, triage engine, and
// escalation workflow together.
type Service struct {
	store    store.Store
	sessions *session.Service
	triage   *triage.Engine
	model    oversight.ModelMeta
	hub      *notify.Hub
}

// New builds the turn service. hub may be nil when no feed is attached.
func New(st store.Store, sessions *session.Service, engine *triage.Engine, modelMeta oversight.ModelMeta, hub *notify.Hub) *Service {
	return &Service{store: st, sessions: sessions, triage: engine, model: modelMeta, hub: hub}
}

// ResolveSession finds or creates the session a turn belongs to, enforcing
// ownership when an explicit session id was supplied.
func (s *Service) ResolveSession(ctx context.Context, patient model.Patient, in TurnInput) (model.Session, error) {
	if in.SessionID != "" {
		// Ownership is checked before Resolve so a rejected request cannot
		// switch another patient's session mode.
		sess, err := s.store.GetSession(ctx, in.SessionID)
		if err != nil {
			return model.Session{}, err
		}
		if sess.PatientID != patient.ID {
			return model.Session{}, ErrNotOwner
		}
		return s.sessions.Resolve(ctx, in.SessionID, in.Mode)
	}

	day, err := s.sessions.Day(in.DateYMD, patient.Timezone)
	if err != nil {
		return model.Session{}, err
	}
	return s.sessions.GetOrCreate(ctx, patient.ID, day, in.Mode, in.NewChat)
}

// DayFor resolves a calendar date in the patient's timezone to the UTC day
// key used for session grouping.
func (s *Service) DayFor(patient model.Patient, ymd string) (time.Time, error) {
	return s.sessions.Day(ymd, patient.Timezone)
}

// SendTurn runs the full non-streaming cycle and returns the session's
// current transcript.
func (s *Service) SendTurn(ctx context.Context, patient model.Patient, in TurnInput) (TurnResult, error) {
	sess, err := s.ResolveSession(ctx, patient, in)
	if err != nil {
		return TurnResult{}, err
	}

	if in.CreateOnly {
		msgs, err := s.store.ListMessages(ctx, sess.ID)
		if err != nil {
			return TurnResult{}, err
		}
		return TurnResult{Session: sess, Messages: msgs}, nil
	}

	if in.Text == "" {
		return TurnResult{}, ErrEmptyText
	}

	if _, err := s.RecordPatientMessage(ctx, sess, in.Text); err != nil {
		return TurnResult{}, err
	}

	result := s.Classify(ctx, patient, sess, in.Text)

	var lastID string
	var ticketID, placeholderID string
	if result.NeedsReview {
		esc, err := s.Escalate(ctx, patient, sess, in, result)
		if err != nil {
			return TurnResult{}, err
		}
		lastID = esc.Placeholder.ID
		ticketID = esc.Ticket.ID
		placeholderID = esc.Placeholder.ID
	} else {
		delivered, err := s.DeliverSafe(ctx, sess, result)
		if err != nil {
			return TurnResult{}, err
		}
		lastID = delivered.ID
	}

	msgs, err := s.store.ListMessages(ctx, sess.ID)
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Session:       sess,
		Messages:      msgs,
		LastMessageID: lastID,
		Escalated:     result.NeedsReview,
		TicketID:      ticketID,
		PlaceholderID: placeholderID,
	}, nil
}

// RecordPatientMessage persists the patient's turn before anything else
// happens to it.
func (s *Service) RecordPatientMessage(ctx context.Context, sess model.Session, text string) (model.Message, error) {
	return s.store.AppendMessage(ctx, model.Message{
		SessionID: sess.ID,
		Role:      model.RolePatient,
		Content:   text,
		Oversight: model.OversightNone,
		Meta:      model.Meta{Mode: sess.Mode},
	})
}

// Classify runs triage over the turn with the session's recent context.
func (s *Service) Classify(ctx context.Context, patient model.Patient, sess model.Session, text string) triage.Result {
	history, err := s.store.RecentMessages(ctx, sess.ID, contextWindow)
	if err != nil {
		log.Printf("[turn] failed to load recent context for session=%s: %v", sess.ID, err)
		history = nil
	}
	return s.triage.Classify(ctx, responder.Request{
		Mode:        sess.Mode,
		PatientName: patient.PreferredName,
		Stage:       patient.Stage,
		Text:        text,
		History:     history,
	})
}

// Request rebuilds the responder request for streaming after triage passed.
func (s *Service) Request(ctx context.Context, patient model.Patient, sess model.Session, text string) responder.Request {
	history, err := s.store.RecentMessages(ctx, sess.ID, contextWindow)
	if err != nil {
		history = nil
	}
	return responder.Request{
		Mode:        sess.Mode,
		PatientName: patient.PreferredName,
		Stage:       patient.Stage,
		Text:        text,
		History:     history,
	}
}

// DeliverSafe appends the assistant reply for a turn triage cleared.
func (s *Service) DeliverSafe(ctx context.Context, sess model.Session, result triage.Result) (model.Message, error) {
	return s.store.AppendMessage(ctx, model.Message{
		SessionID: sess.ID,
		Role:      model.RoleAssistant,
		Content:   result.Reply,
		Oversight: model.OversightNone,
		Meta:      model.Meta{Mode: sess.Mode, RiskSignal: string(result.RiskSignal)},
	})
}

// Escalate creates the ticket, its draft, the hidden audit message, and the
// patient-visible placeholder in one atomic store write.
func (s *Service) Escalate(ctx context.Context, patient model.Patient, sess model.Session, in TurnInput, result triage.Result) (store.Escalation, error) {
	snapshot := oversight.ContextSnapshot{
		SessionID: sess.ID,
		Mode:      string(sess.Mode),
		Date:      in.DateYMD,
		Recent:    s.snapshotRecent(ctx, sess.ID),
	}

	esc, err := s.store.CreateEscalation(ctx, store.Escalation{
		Ticket: oversight.RelayTicket{
			PatientID: patient.ID,
			Question:  in.Text,
			RiskFlags: oversight.RiskFlags{Signal: result.RiskSignal, Reason: result.Reason},
			Snapshot:  snapshot,
		},
		Draft: oversight.ProviderDraft{
			DraftText: result.Reply,
			ModelMeta: s.model,
		},
		Audit: model.Message{
			SessionID: sess.ID,
			Role:      model.RoleAssistant,
			Content:   result.Reply,
			Oversight: model.OversightAwaiting,
			Meta:      model.Meta{Mode: sess.Mode, ProviderProposed: true, Reason: result.Reason},
		},
		Placeholder: model.Message{
			SessionID: sess.ID,
			Role:      model.RoleAssistant,
			Content:   PlaceholderText,
			Oversight: model.OversightAwaiting,
			Meta:      model.Meta{Mode: sess.Mode, Display: model.DisplayPlaceholder},
		},
	})
	if err != nil {
		return store.Escalation{}, err
	}

	log.Printf("[turn] escalated session=%s ticket=%s signal=%s", sess.ID, esc.Ticket.ID, result.RiskSignal)
	if s.hub != nil {
		s.hub.Publish(notify.Event{Kind: "ticket_pending", TicketID: esc.Ticket.ID, PatientID: patient.ID})
	}
	return esc, nil
}

// Messages re-reads the session transcript, verifying ownership.
func (s *Service) Messages(ctx context.Context, patient model.Patient, sessionID string) ([]model.Message, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.PatientID != patient.ID {
		return nil, ErrNotOwner
	}
	return s.store.ListMessages(ctx, sessionID)
}

// snapshotRecent captures a truncated transcript tail for the ticket.
func (s *Service) snapshotRecent(ctx context.Context, sessionID string) []oversight.SnapshotEntry {
	history, err := s.store.RecentMessages(ctx, sessionID, contextWindow)
	if err != nil {
		return nil
	}
	out := make([]oversight.SnapshotEntry, 0, len(history))
	for _, m := range history {
		content := m.Content
		if len(content) > snapshotContentCap {
			cut := snapshotContentCap
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		out = append(out, oversight.SnapshotEntry{
			Role:      string(m.Role),
			Content:   content,
			Oversight: string(m.Oversight),
			At:        m.CreatedAt,
		})
	}
	return out
}
