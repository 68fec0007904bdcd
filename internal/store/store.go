// Package store defines the persistence contract shared by the in-memory and
// Postgres backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrDraftNotFound   = errors.New("draft not found")

	// ErrDuplicateSeq reports a (patient, day, seqInDay) collision during
	// session creation. Callers retry with an incremented sequence.
	ErrDuplicateSeq = errors.New("duplicate session sequence for day")
)

// Escalation is the quadruple written atomically when triage escalates a turn.
type Escalation struct {
	Ticket      oversight.RelayTicket
	Draft       oversight.ProviderDraft
	Audit       chat.Message
	Placeholder chat.Message
}

// Store is the persistence surface for the oversight workflow. Implementations
// guarantee per-call atomicity and at least read-committed visibility.
type Store interface {
	// Patients.
	GetPatient(ctx context.Context, id string) (chat.Patient, error)
	CreatePatient(ctx context.Context, p chat.Patient) (chat.Patient, error)

	// Sessions. CreateSession returns ErrDuplicateSeq when another writer
	// claimed the same (patient, day, seqInDay) first.
	CreateSession(ctx context.Context, s chat.Session) (chat.Session, error)
	GetSession(ctx context.Context, id string) (chat.Session, error)
	LatestSessionForDay(ctx context.Context, patientID string, day time.Time) (chat.Session, error)
	LatestSessionForPatient(ctx context.Context, patientID string) (chat.Session, error)
	ListSessionsForDay(ctx context.Context, patientID string, day time.Time) ([]chat.Session, error)
	MaxSeqForDay(ctx context.Context, patientID string, day time.Time) (int, error)
	UpdateSessionMode(ctx context.Context, id string, mode chat.Mode) (chat.Session, error)

	// Messages. ListMessages is ordered by ascending CreatedAt and re-reads
	// current state on every call. UpdateMessage is reserved for placeholder
	// resolution; it never reorders the log.
	AppendMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error)
	AwaitingMessagesForTicket(ctx context.Context, ticketID string) ([]chat.Message, error)
	UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error)

	// Escalation and approval.
	CreateEscalation(ctx context.Context, esc Escalation) (Escalation, error)
	GetTicket(ctx context.Context, id string) (oversight.RelayTicket, error)
	UpdateTicketStatus(ctx context.Context, id string, status oversight.TicketStatus) error
	PendingTickets(ctx context.Context) ([]oversight.PendingTicket, error)
	GetDraft(ctx context.Context, id string) (oversight.ProviderDraft, error)
	LatestDraftForTicket(ctx context.Context, ticketID string) (oversight.ProviderDraft, error)
	UpdateDraft(ctx context.Context, d oversight.ProviderDraft) (oversight.ProviderDraft, error)
	CreateReply(ctx context.Context, r oversight.ProviderReply) (oversight.ProviderReply, error)
}
