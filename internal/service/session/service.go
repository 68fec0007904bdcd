// Package session manages the dated, sequenced conversation threads.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/internal/timeutil"
)

// seqRetries bounds the duplicate-sequence retry loop when concurrent "new
// chat" requests race on the same day.
const seqRetries = 3

var ErrSeqExhausted = errors.New("could not allocate session sequence")

// Service allocates and resolves sessions on top of the store.
type Service struct {
	store store.Store
}

// New builds the session service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Day resolves the patient-local calendar date to the canonical UTC day key.
func (s *Service) Day(ymd, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "America/New_York"
	}
	return timeutil.LocalDayToUTC(ymd, timezone)
}

// GetOrCreate returns the thread for a patient's day. With forceNew it always
// opens a fresh thread at max(seq)+1; otherwise it reuses the day's most
// recent thread, updating its mode in place when the caller navigated to a
// different mode, and creates seq=1 when the day has no thread yet.
func (s *Service) GetOrCreate(ctx context.Context, patientID string, day time.Time, mode chat.Mode, forceNew bool) (chat.Session, error) {
	if forceNew {
		return s.create(ctx, patientID, day, mode)
	}

	sess, err := s.store.LatestSessionForDay(ctx, patientID, day)
	if errors.Is(err, store.ErrSessionNotFound) {
		return s.create(ctx, patientID, day, mode)
	}
	if err != nil {
		return chat.Session{}, err
	}

	if mode != "" && mode != sess.Mode {
		// Navigating between modes inside the same day reuses the thread
		// unless the caller explicitly asked for a new chat.
		return s.store.UpdateSessionMode(ctx, sess.ID, mode)
	}
	return sess, nil
}

// Resolve loads a session by id, switching its mode in place when requested.
func (s *Service) Resolve(ctx context.Context, id string, mode chat.Mode) (chat.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}
	if mode != "" && mode != sess.Mode {
		return s.store.UpdateSessionMode(ctx, sess.ID, mode)
	}
	return sess, nil
}

// create allocates max(seq)+1, retrying on a uniqueness conflict with an
// incremented candidate.
func (s *Service) create(ctx context.Context, patientID string, day time.Time, mode chat.Mode) (chat.Session, error) {
	if mode == "" {
		mode = chat.ModeGeneral
	}

	max, err := s.store.MaxSeqForDay(ctx, patientID, day)
	if err != nil {
		return chat.Session{}, err
	}

	seq := max + 1
	for attempt := 0; attempt <= seqRetries; attempt++ {
		sess, err := s.store.CreateSession(ctx, chat.Session{
			PatientID: patientID,
			Day:       day,
			SeqInDay:  seq,
			Mode:      mode,
		})
		if errors.Is(err, store.ErrDuplicateSeq) {
			seq++
			continue
		}
		if err != nil {
			return chat.Session{}, err
		}
		return sess, nil
	}
	return chat.Session{}, fmt.Errorf("%w after %d attempts", ErrSeqExhausted, seqRetries+1)
}
