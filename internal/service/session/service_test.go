package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/service/session"
	"github.com/AHasnain3/mamamia/internal/store/memory"
)

func day(t *testing.T, svc *session.Service, ymd string) time.Time {
	t.Helper()
	d, err := svc.Day(ymd, "America/New_York")
	if err != nil {
		t.Fatalf("Day err: %v", err)
	}
	return d
}

func TestGetOrCreateFirstSessionOfDay(t *testing.T) {
	svc := session.New(memory.New())
	ctx := context.Background()

	sess, err := svc.GetOrCreate(ctx, "p1", day(t, svc, "2024-06-15"), chat.ModeMood, false)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.SeqInDay != 1 {
		t.Fatalf("first session of the day must be seq 1, got %d", sess.SeqInDay)
	}
	if sess.Mode != chat.ModeMood {
		t.Fatalf("unexpected mode: %s", sess.Mode)
	}
}

func TestGetOrCreateReusesLatest(t *testing.T) {
	svc := session.New(memory.New())
	ctx := context.Background()
	d := day(t, svc, "2024-06-15")

	first, err := svc.GetOrCreate(ctx, "p1", d, chat.ModeGeneral, false)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, "p1", d, chat.ModeGeneral, false)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("same day without newChat must reuse the thread")
	}
}

func TestForceNewAllocatesContiguousSeq(t *testing.T) {
	svc := session.New(memory.New())
	ctx := context.Background()
	d := day(t, svc, "2024-06-15")

	for want := 1; want <= 4; want++ {
		sess, err := svc.GetOrCreate(ctx, "p1", d, chat.ModeGeneral, true)
		if err != nil {
			t.Fatalf("GetOrCreate #%d err: %v", want, err)
		}
		if sess.SeqInDay != want {
			t.Fatalf("expected seq %d, got %d", want, sess.SeqInDay)
		}
	}
}

func TestSeqIsPerDayAndPerPatient(t *testing.T) {
	svc := session.New(memory.New())
	ctx := context.Background()

	d1 := day(t, svc, "2024-06-15")
	d2 := day(t, svc, "2024-06-16")

	if _, err := svc.GetOrCreate(ctx, "p1", d1, chat.ModeGeneral, true); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	nextDay, err := svc.GetOrCreate(ctx, "p1", d2, chat.ModeGeneral, true)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if nextDay.SeqInDay != 1 {
		t.Fatalf("a new day must restart at seq 1, got %d", nextDay.SeqInDay)
	}

	other, err := svc.GetOrCreate(ctx, "p2", d1, chat.ModeGeneral, true)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if other.SeqInDay != 1 {
		t.Fatalf("another patient must start at seq 1, got %d", other.SeqInDay)
	}
}

func TestModeSwitchUpdatesInPlace(t *testing.T) {
	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()
	d := day(t, svc, "2024-06-15")

	first, err := svc.GetOrCreate(ctx, "p1", d, chat.ModeGeneral, false)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	switched, err := svc.GetOrCreate(ctx, "p1", d, chat.ModeHealth, false)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	if switched.ID != first.ID {
		t.Fatal("mode switch must not open a new thread")
	}
	if switched.Mode != chat.ModeHealth {
		t.Fatalf("expected HEALTH, got %s", switched.Mode)
	}

	reloaded, err := st.GetSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if reloaded.Mode != chat.ModeHealth {
		t.Fatalf("mode switch was not persisted, got %s", reloaded.Mode)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	svc := session.New(memory.New())
	if _, err := svc.Resolve(context.Background(), "missing", ""); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
