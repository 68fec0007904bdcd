// Package approval resolves pending relay tickets into delivered, attributed
// provider replies.
package approval

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	model "github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	"github.com/AHasnain3/mamamia/internal/service/notify"
	"github.com/AHasnain3/mamamia/internal/store"
)

var (
	// ErrNoTarget means neither a ticket id nor a draft id was supplied.
	ErrNoTarget = errors.New("ticketId or draftId required")
	// ErrEmptyDraft means both the edit and the stored draft were blank.
	ErrEmptyDraft = errors.New("no draft text")
	// ErrTicketAnswered rejects re-approval of an already answered ticket.
	ErrTicketAnswered = errors.New("ticket already answered")
	// ErrNoDeliverableSession means no session could be found to carry the
	// reply; the approval can be retried once a session exists.
	ErrNoDeliverableSession = errors.New("no session to deliver message")
)

// Input selects the ticket (directly or via a draft) and optionally edits the
// text before it is finalized.
type Input struct {
	TicketID     string
	DraftID      string
	EditedText   string
	ProviderName string
}

// Outcome reports where the approved reply landed. Modified is true when the
// provider edited the draft before approving.
type Outcome struct {
	TicketID  string
	MessageID string
	SessionID string
	FinalText string
	Modified  bool
}

// Service implements the approval workflow over the store.
type Service struct {
	store store.Store
	hub   *notify.Hub
}

// New builds the approval service. hub may be nil.
func New(st store.Store, hub *notify.Hub) *Service {
	return &Service{store: st, hub: hub}
}

// Approve finalizes a pending ticket: it resolves the applicable draft,
// persists any edit, rewrites every awaiting message for the ticket into the
// delivered provider reply, marks the ticket answered and the draft approved,
// and appends the immutable audit row.
func (s *Service) Approve(ctx context.Context, in Input) (Outcome, error) {
	ticket, draft, err := s.resolveTarget(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	if ticket.Status != oversight.TicketPending {
		return Outcome{}, ErrTicketAnswered
	}

	edited := strings.TrimSpace(in.EditedText)
	finalText := edited
	if finalText == "" {
		finalText = strings.TrimSpace(draft.DraftText)
	}
	if finalText == "" {
		return Outcome{}, ErrEmptyDraft
	}
	modified := edited != "" && edited != strings.TrimSpace(draft.DraftText)

	if modified && draft.ID != "" {
		draft.DraftText = finalText
		draft.LastEditedAt = time.Now().UTC()
		if draft, err = s.store.UpdateDraft(ctx, draft); err != nil {
			return Outcome{}, err
		}
	}

	messageID, sessionID, err := s.deliver(ctx, ticket, finalText, in.ProviderName)
	if err != nil {
		return Outcome{}, err
	}

	if err := s.store.UpdateTicketStatus(ctx, ticket.ID, oversight.TicketAnswered); err != nil {
		return Outcome{}, err
	}

	if draft.ID != "" {
		draft.Approved = true
		if _, err := s.store.UpdateDraft(ctx, draft); err != nil {
			return Outcome{}, err
		}
	}

	providerName := in.ProviderName
	if providerName == "" {
		providerName = "On-call Provider"
	}
	if _, err := s.store.CreateReply(ctx, oversight.ProviderReply{
		TicketID:     ticket.ID,
		FinalText:    finalText,
		ProviderName: providerName,
	}); err != nil {
		return Outcome{}, err
	}

	log.Printf("[approve] ticket=%s message=%s modified=%t", ticket.ID, messageID, modified)
	if s.hub != nil {
		s.hub.Publish(notify.Event{Kind: "ticket_answered", TicketID: ticket.ID, PatientID: ticket.PatientID})
	}

	return Outcome{
		TicketID:  ticket.ID,
		MessageID: messageID,
		SessionID: sessionID,
		FinalText: finalText,
		Modified:  modified,
	}, nil
}

// resolveTarget finds the ticket and the applicable draft: the explicitly
// referenced draft, else the ticket's most recent one.
func (s *Service) resolveTarget(ctx context.Context, in Input) (oversight.RelayTicket, oversight.ProviderDraft, error) {
	switch {
	case in.TicketID != "":
		ticket, err := s.store.GetTicket(ctx, in.TicketID)
		if err != nil {
			return oversight.RelayTicket{}, oversight.ProviderDraft{}, err
		}
		draft, err := s.store.LatestDraftForTicket(ctx, ticket.ID)
		if err != nil && !errors.Is(err, store.ErrDraftNotFound) {
			return oversight.RelayTicket{}, oversight.ProviderDraft{}, err
		}
		return ticket, draft, nil
	case in.DraftID != "":
		draft, err := s.store.GetDraft(ctx, in.DraftID)
		if err != nil {
			return oversight.RelayTicket{}, oversight.ProviderDraft{}, err
		}
		ticket, err := s.store.GetTicket(ctx, draft.TicketID)
		if err != nil {
			return oversight.RelayTicket{}, oversight.ProviderDraft{}, err
		}
		return ticket, draft, nil
	default:
		return oversight.RelayTicket{}, oversight.ProviderDraft{}, ErrNoTarget
	}
}

// deliver rewrites every awaiting message for the ticket, or injects a fresh
// provider message when no placeholder survived.
func (s *Service) deliver(ctx context.Context, ticket oversight.RelayTicket, finalText, providerName string) (messageID, sessionID string, err error) {
	awaiting, err := s.store.AwaitingMessagesForTicket(ctx, ticket.ID)
	if err != nil {
		return "", "", err
	}

	if len(awaiting) == 0 {
		return s.inject(ctx, ticket, finalText)
	}

	now := time.Now().UTC()
	for _, m := range awaiting {
		m.Role = model.RoleProvider
		m.Content = finalText
		m.Oversight = model.OversightApproved
		m.Meta.ProviderName = providerName
		m.Meta.ApprovedAt = &now
		m.Meta.ApprovedTicketID = ticket.ID
		updated, err := s.store.UpdateMessage(ctx, m)
		if err != nil {
			return "", "", err
		}
		sessionID = updated.SessionID
		// Prefer reporting the visible placeholder's id; fall back to the
		// last rewritten row.
		if messageID == "" || updated.Meta.Display == model.DisplayPlaceholder {
			messageID = updated.ID
		}
	}
	return messageID, sessionID, nil
}

// inject is the recovery path: no placeholder exists, so deliver into the
// session the ticket snapshotted, else the patient's most recent session.
func (s *Service) inject(ctx context.Context, ticket oversight.RelayTicket, finalText string) (string, string, error) {
	sessionID := ticket.Snapshot.SessionID
	if sessionID != "" {
		if _, err := s.store.GetSession(ctx, sessionID); err != nil {
			sessionID = ""
		}
	}
	if sessionID == "" {
		sess, err := s.store.LatestSessionForPatient(ctx, ticket.PatientID)
		if errors.Is(err, store.ErrSessionNotFound) {
			return "", "", ErrNoDeliverableSession
		}
		if err != nil {
			return "", "", err
		}
		sessionID = sess.ID
	}

	created, err := s.store.AppendMessage(ctx, model.Message{
		SessionID:     sessionID,
		Role:          model.RoleProvider,
		Content:       finalText,
		Oversight:     model.OversightApproved,
		RelayTicketID: ticket.ID,
		Meta:          model.Meta{InjectedFromTicket: ticket.ID},
	})
	if err != nil {
		return "", "", err
	}
	return created.ID, sessionID, nil
}
