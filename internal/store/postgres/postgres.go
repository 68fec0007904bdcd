// Package postgres implements store.Store on database/sql with the lib/pq
// driver. The escalation quadruple is written in a single transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	"github.com/AHasnain3/mamamia/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps an open *sql.DB. The caller owns the connection lifecycle.
type Store struct {
	db *sql.DB
}

// New returns a Store over an existing connection.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate applies schema.sql. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Store) GetPatient(ctx context.Context, id string) (chat.Patient, error) {
	var p chat.Patient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, preferred_name, timezone, stage, password_hash, created_at
         FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.PreferredName, &p.Timezone, &p.Stage, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Patient{}, store.ErrPatientNotFound
	}
	if err != nil {
		return chat.Patient{}, err
	}
	return p, nil
}

func (s *Store) CreatePatient(ctx context.Context, p chat.Patient) (chat.Patient, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO patients (id, preferred_name, timezone, stage, password_hash)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		p.ID, p.PreferredName, p.Timezone, p.Stage, p.PasswordHash,
	).Scan(&p.CreatedAt)
	if err != nil {
		return chat.Patient{}, err
	}
	return p, nil
}

func (s *Store) CreateSession(ctx context.Context, sess chat.Session) (chat.Session, error) {
	sess.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (id, patient_id, day, seq_in_day, mode)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		sess.ID, sess.PatientID, sess.Day, sess.SeqInDay, sess.Mode,
	).Scan(&sess.CreatedAt)
	if isUniqueViolation(err) {
		return chat.Session{}, store.ErrDuplicateSeq
	}
	if err != nil {
		return chat.Session{}, err
	}
	return sess, nil
}

func scanSession(row interface{ Scan(...any) error }) (chat.Session, error) {
	var sess chat.Session
	err := row.Scan(&sess.ID, &sess.PatientID, &sess.Day, &sess.SeqInDay, &sess.Mode, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, err
	}
	sess.Day = sess.Day.UTC()
	return sess, nil
}

const sessionCols = `id, patient_id, day, seq_in_day, mode, created_at`

func (s *Store) GetSession(ctx context.Context, id string) (chat.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
}

func (s *Store) LatestSessionForDay(ctx context.Context, patientID string, day time.Time) (chat.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions
         WHERE patient_id = $1 AND day = $2
         ORDER BY seq_in_day DESC LIMIT 1`, patientID, day))
}

func (s *Store) LatestSessionForPatient(ctx context.Context, patientID string) (chat.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions
         WHERE patient_id = $1
         ORDER BY created_at DESC LIMIT 1`, patientID))
}

func (s *Store) ListSessionsForDay(ctx context.Context, patientID string, day time.Time) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM sessions
         WHERE patient_id = $1 AND day = $2
         ORDER BY seq_in_day ASC`, patientID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) MaxSeqForDay(ctx context.Context, patientID string, day time.Time) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq_in_day), 0) FROM sessions
         WHERE patient_id = $1 AND day = $2`, patientID, day,
	).Scan(&max)
	return max, err
}

func (s *Store) UpdateSessionMode(ctx context.Context, id string, mode chat.Mode) (chat.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`UPDATE sessions SET mode = $2 WHERE id = $1
         RETURNING `+sessionCols, id, mode))
}

const messageCols = `id, session_id, role, content, oversight, relay_ticket_id, meta, created_at`

func scanMessage(row interface{ Scan(...any) error }) (chat.Message, error) {
	var m chat.Message
	var ticketID sql.NullString
	var metaJSON []byte
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Oversight, &ticketID, &metaJSON, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, store.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	m.RelayTicketID = ticketID.String
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &m.Meta); err != nil {
			return chat.Message{}, fmt.Errorf("unmarshal message meta: %w", err)
		}
	}
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) AppendMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	return appendMessage(ctx, s.db, m)
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func appendMessage(ctx context.Context, q execQuerier, m chat.Message) (chat.Message, error) {
	metaJSON, err := json.Marshal(m.Meta)
	if err != nil {
		return chat.Message{}, err
	}
	m.ID = uuid.NewString()
	err = q.QueryRowContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, oversight, relay_ticket_id, meta)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING created_at`,
		m.ID, m.SessionID, m.Role, m.Content, m.Oversight, nullable(m.RelayTicketID), metaJSON,
	).Scan(&m.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) collectMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages
         WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return s.collectMessages(rows)
}

func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM (
             SELECT `+messageCols+` FROM messages
             WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
         ) recent ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return s.collectMessages(rows)
}

func (s *Store) AwaitingMessagesForTicket(ctx context.Context, ticketID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages
         WHERE relay_ticket_id = $1 AND oversight = $2
         ORDER BY created_at ASC`, ticketID, chat.OversightAwaiting)
	if err != nil {
		return nil, err
	}
	return s.collectMessages(rows)
}

func (s *Store) UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	metaJSON, err := json.Marshal(m.Meta)
	if err != nil {
		return chat.Message{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET role = $2, content = $3, oversight = $4, meta = $5
         WHERE id = $1`,
		m.ID, m.Role, m.Content, m.Oversight, metaJSON)
	if err != nil {
		return chat.Message{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return chat.Message{}, err
	}
	if affected == 0 {
		return chat.Message{}, store.ErrMessageNotFound
	}
	return m, nil
}

func (s *Store) CreateEscalation(ctx context.Context, esc store.Escalation) (store.Escalation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Escalation{}, err
	}
	defer tx.Rollback()

	flagsJSON, err := json.Marshal(esc.Ticket.RiskFlags)
	if err != nil {
		return store.Escalation{}, err
	}
	snapJSON, err := json.Marshal(esc.Ticket.Snapshot)
	if err != nil {
		return store.Escalation{}, err
	}
	esc.Ticket.ID = uuid.NewString()
	esc.Ticket.Status = oversight.TicketPending
	err = tx.QueryRowContext(ctx,
		`INSERT INTO relay_tickets (id, patient_id, question, risk_flags, snapshot, status)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING created_at`,
		esc.Ticket.ID, esc.Ticket.PatientID, esc.Ticket.Question, flagsJSON, snapJSON, esc.Ticket.Status,
	).Scan(&esc.Ticket.CreatedAt)
	if err != nil {
		return store.Escalation{}, err
	}

	metaJSON, err := json.Marshal(esc.Draft.ModelMeta)
	if err != nil {
		return store.Escalation{}, err
	}
	esc.Draft.ID = uuid.NewString()
	esc.Draft.TicketID = esc.Ticket.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO provider_drafts (id, ticket_id, draft_text, model_meta)
         VALUES ($1, $2, $3, $4)
         RETURNING created_at, last_edited_at`,
		esc.Draft.ID, esc.Draft.TicketID, esc.Draft.DraftText, metaJSON,
	).Scan(&esc.Draft.CreatedAt, &esc.Draft.LastEditedAt)
	if err != nil {
		return store.Escalation{}, err
	}

	esc.Audit.RelayTicketID = esc.Ticket.ID
	esc.Audit, err = appendMessage(ctx, tx, esc.Audit)
	if err != nil {
		return store.Escalation{}, err
	}

	esc.Placeholder.RelayTicketID = esc.Ticket.ID
	esc.Placeholder, err = appendMessage(ctx, tx, esc.Placeholder)
	if err != nil {
		return store.Escalation{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.Escalation{}, err
	}
	return esc, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (oversight.RelayTicket, error) {
	var t oversight.RelayTicket
	var flagsJSON, snapJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, question, risk_flags, snapshot, status, created_at
         FROM relay_tickets WHERE id = $1`, id,
	).Scan(&t.ID, &t.PatientID, &t.Question, &flagsJSON, &snapJSON, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return oversight.RelayTicket{}, store.ErrTicketNotFound
	}
	if err != nil {
		return oversight.RelayTicket{}, err
	}
	if err := json.Unmarshal(flagsJSON, &t.RiskFlags); err != nil {
		return oversight.RelayTicket{}, fmt.Errorf("unmarshal risk flags: %w", err)
	}
	if err := json.Unmarshal(snapJSON, &t.Snapshot); err != nil {
		return oversight.RelayTicket{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, id string, status oversight.TicketStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE relay_tickets SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

func (s *Store) PendingTickets(ctx context.Context) ([]oversight.PendingTicket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.patient_id, t.question, t.risk_flags, t.snapshot, t.status, t.created_at,
                p.preferred_name
         FROM relay_tickets t
         JOIN patients p ON p.id = t.patient_id
         WHERE t.status = $1
         ORDER BY t.created_at DESC`, oversight.TicketPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oversight.PendingTicket
	for rows.Next() {
		var entry oversight.PendingTicket
		var flagsJSON, snapJSON []byte
		if err := rows.Scan(
			&entry.Ticket.ID, &entry.Ticket.PatientID, &entry.Ticket.Question,
			&flagsJSON, &snapJSON, &entry.Ticket.Status, &entry.Ticket.CreatedAt,
			&entry.PatientName,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(flagsJSON, &entry.Ticket.RiskFlags); err != nil {
			return nil, fmt.Errorf("unmarshal risk flags: %w", err)
		}
		if err := json.Unmarshal(snapJSON, &entry.Ticket.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		draft, err := s.LatestDraftForTicket(ctx, out[i].Ticket.ID)
		if err == nil {
			d := draft
			out[i].LatestDraft = &d
		} else if !errors.Is(err, store.ErrDraftNotFound) {
			return nil, err
		}
	}
	return out, nil
}

func scanDraft(row interface{ Scan(...any) error }) (oversight.ProviderDraft, error) {
	var d oversight.ProviderDraft
	var metaJSON []byte
	err := row.Scan(&d.ID, &d.TicketID, &d.DraftText, &d.Approved, &metaJSON, &d.CreatedAt, &d.LastEditedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return oversight.ProviderDraft{}, store.ErrDraftNotFound
	}
	if err != nil {
		return oversight.ProviderDraft{}, err
	}
	if err := json.Unmarshal(metaJSON, &d.ModelMeta); err != nil {
		return oversight.ProviderDraft{}, fmt.Errorf("unmarshal model meta: %w", err)
	}
	return d, nil
}

const draftCols = `id, ticket_id, draft_text, approved, model_meta, created_at, last_edited_at`

func (s *Store) GetDraft(ctx context.Context, id string) (oversight.ProviderDraft, error) {
	return scanDraft(s.db.QueryRowContext(ctx,
		`SELECT `+draftCols+` FROM provider_drafts WHERE id = $1`, id))
}

func (s *Store) LatestDraftForTicket(ctx context.Context, ticketID string) (oversight.ProviderDraft, error) {
	return scanDraft(s.db.QueryRowContext(ctx,
		`SELECT `+draftCols+` FROM provider_drafts
         WHERE ticket_id = $1
         ORDER BY created_at DESC LIMIT 1`, ticketID))
}

func (s *Store) UpdateDraft(ctx context.Context, d oversight.ProviderDraft) (oversight.ProviderDraft, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE provider_drafts
         SET draft_text = $2, approved = $3, last_edited_at = $4
         WHERE id = $1`,
		d.ID, d.DraftText, d.Approved, d.LastEditedAt)
	if err != nil {
		return oversight.ProviderDraft{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oversight.ProviderDraft{}, err
	}
	if affected == 0 {
		return oversight.ProviderDraft{}, store.ErrDraftNotFound
	}
	return d, nil
}

func (s *Store) CreateReply(ctx context.Context, r oversight.ProviderReply) (oversight.ProviderReply, error) {
	r.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO provider_replies (id, ticket_id, final_text, provider_name, ack_by_mother)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		r.ID, r.TicketID, r.FinalText, r.ProviderName, r.AckByMother,
	).Scan(&r.CreatedAt)
	if err != nil {
		return oversight.ProviderReply{}, err
	}
	return r, nil
}
