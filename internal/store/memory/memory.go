// Package memory implements store.Store with mutex-guarded maps. It backs the
// test suite and dev runs without a DATABASE_URL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	"github.com/AHasnain3/mamamia/internal/store"
)

// Store keeps all state in process. Message slices preserve append order,
// which is the ordering contract ListMessages exposes.
type Store struct {
	mu       sync.RWMutex
	patients map[string]chat.Patient
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	tickets  map[string]oversight.RelayTicket
	drafts   map[string]oversight.ProviderDraft
	replies  []oversight.ProviderReply
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		patients: make(map[string]chat.Patient),
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		tickets:  make(map[string]oversight.RelayTicket),
		drafts:   make(map[string]oversight.ProviderDraft),
	}
}

func (s *Store) GetPatient(_ context.Context, id string) (chat.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return chat.Patient{}, store.ErrPatientNotFound
	}
	return p, nil
}

func (s *Store) CreatePatient(_ context.Context, p chat.Patient) (chat.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.patients[p.ID] = p
	return p, nil
}

func (s *Store) CreateSession(_ context.Context, sess chat.Session) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.PatientID == sess.PatientID && existing.Day.Equal(sess.Day) && existing.SeqInDay == sess.SeqInDay {
			return chat.Session{}, store.ErrDuplicateSeq
		}
	}
	sess.ID = uuid.NewString()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = sess
	s.messages[sess.ID] = make([]chat.Message, 0, 16)
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) LatestSessionForDay(_ context.Context, patientID string, day time.Time) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best chat.Session
	found := false
	for _, sess := range s.sessions {
		if sess.PatientID != patientID || !sess.Day.Equal(day) {
			continue
		}
		if !found || sess.SeqInDay > best.SeqInDay {
			best = sess
			found = true
		}
	}
	if !found {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return best, nil
}

func (s *Store) LatestSessionForPatient(_ context.Context, patientID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best chat.Session
	found := false
	for _, sess := range s.sessions {
		if sess.PatientID != patientID {
			continue
		}
		if !found || sess.CreatedAt.After(best.CreatedAt) {
			best = sess
			found = true
		}
	}
	if !found {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return best, nil
}

func (s *Store) ListSessionsForDay(_ context.Context, patientID string, day time.Time) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Session, 0, 4)
	for _, sess := range s.sessions {
		if sess.PatientID == patientID && sess.Day.Equal(day) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqInDay < out[j].SeqInDay })
	return out, nil
}

func (s *Store) MaxSeqForDay(_ context.Context, patientID string, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, sess := range s.sessions {
		if sess.PatientID == patientID && sess.Day.Equal(day) && sess.SeqInDay > max {
			max = sess.SeqInDay
		}
	}
	return max, nil
}

func (s *Store) UpdateSessionMode(_ context.Context, id string, mode chat.Mode) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, store.ErrSessionNotFound
	}
	sess.Mode = mode
	s.sessions[id] = sess
	return sess, nil
}

func (s *Store) AppendMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(m)
}

func (s *Store) appendLocked(m chat.Message) (chat.Message, error) {
	if _, ok := s.sessions[m.SessionID]; !ok {
		return chat.Message{}, store.ErrSessionNotFound
	}
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], m)
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.messages[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	return copied, nil
}

func (s *Store) RecentMessages(_ context.Context, sessionID string, limit int) ([]chat.Message, error) {
	msgs, err := s.ListMessages(nil, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *Store) AwaitingMessagesForTicket(_ context.Context, ticketID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []chat.Message
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.RelayTicketID == ticketID && m.Oversight == chat.OversightAwaiting {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.messages[m.SessionID]
	if !ok {
		return chat.Message{}, store.ErrSessionNotFound
	}
	for i := range msgs {
		if msgs[i].ID == m.ID {
			m.CreatedAt = msgs[i].CreatedAt
			msgs[i] = m
			return m, nil
		}
	}
	return chat.Message{}, store.ErrMessageNotFound
}

// CreateEscalation writes the ticket, draft, audit message, and placeholder in
// one critical section so a turn can never be observed half-escalated.
func (s *Store) CreateEscalation(_ context.Context, esc store.Escalation) (store.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	esc.Ticket.ID = uuid.NewString()
	if esc.Ticket.CreatedAt.IsZero() {
		esc.Ticket.CreatedAt = now
	}
	esc.Ticket.Status = oversight.TicketPending
	s.tickets[esc.Ticket.ID] = esc.Ticket

	esc.Draft.ID = uuid.NewString()
	esc.Draft.TicketID = esc.Ticket.ID
	esc.Draft.CreatedAt = now
	esc.Draft.LastEditedAt = now
	s.drafts[esc.Draft.ID] = esc.Draft

	esc.Audit.RelayTicketID = esc.Ticket.ID
	audit, err := s.appendLocked(esc.Audit)
	if err != nil {
		delete(s.tickets, esc.Ticket.ID)
		delete(s.drafts, esc.Draft.ID)
		return store.Escalation{}, err
	}
	esc.Audit = audit

	esc.Placeholder.RelayTicketID = esc.Ticket.ID
	placeholder, err := s.appendLocked(esc.Placeholder)
	if err != nil {
		delete(s.tickets, esc.Ticket.ID)
		delete(s.drafts, esc.Draft.ID)
		msgs := s.messages[esc.Audit.SessionID]
		s.messages[esc.Audit.SessionID] = msgs[:len(msgs)-1]
		return store.Escalation{}, err
	}
	esc.Placeholder = placeholder

	return esc, nil
}

func (s *Store) GetTicket(_ context.Context, id string) (oversight.RelayTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return oversight.RelayTicket{}, store.ErrTicketNotFound
	}
	return t, nil
}

func (s *Store) UpdateTicketStatus(_ context.Context, id string, status oversight.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return store.ErrTicketNotFound
	}
	t.Status = status
	s.tickets[id] = t
	return nil
}

func (s *Store) PendingTickets(_ context.Context) ([]oversight.PendingTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []oversight.PendingTicket
	for _, t := range s.tickets {
		if t.Status != oversight.TicketPending {
			continue
		}
		entry := oversight.PendingTicket{Ticket: t}
		if p, ok := s.patients[t.PatientID]; ok {
			entry.PatientName = p.PreferredName
		}
		if d, ok := s.latestDraftLocked(t.ID); ok {
			draft := d
			entry.LatestDraft = &draft
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ticket.CreatedAt.After(out[j].Ticket.CreatedAt)
	})
	return out, nil
}

func (s *Store) latestDraftLocked(ticketID string) (oversight.ProviderDraft, bool) {
	var best oversight.ProviderDraft
	found := false
	for _, d := range s.drafts {
		if d.TicketID != ticketID {
			continue
		}
		if !found || d.CreatedAt.After(best.CreatedAt) {
			best = d
			found = true
		}
	}
	return best, found
}

func (s *Store) GetDraft(_ context.Context, id string) (oversight.ProviderDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return oversight.ProviderDraft{}, store.ErrDraftNotFound
	}
	return d, nil
}

func (s *Store) LatestDraftForTicket(_ context.Context, ticketID string) (oversight.ProviderDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.latestDraftLocked(ticketID)
	if !ok {
		return oversight.ProviderDraft{}, store.ErrDraftNotFound
	}
	return d, nil
}

func (s *Store) UpdateDraft(_ context.Context, d oversight.ProviderDraft) (oversight.ProviderDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[d.ID]; !ok {
		return oversight.ProviderDraft{}, store.ErrDraftNotFound
	}
	s.drafts[d.ID] = d
	return d, nil
}

func (s *Store) CreateReply(_ context.Context, r oversight.ProviderReply) (oversight.ProviderReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.replies = append(s.replies, r)
	return r, nil
}

// Replies exposes the audit log for tests.
func (s *Store) Replies() []oversight.ProviderReply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]oversight.ProviderReply, len(s.replies))
	copy(out, s.replies)
	return out
}
