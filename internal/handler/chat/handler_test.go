package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/AHasnain3/mamamia/internal/middleware"
	model "github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	chatService "github.com/AHasnain3/mamamia/internal/service/chat"
	"github.com/AHasnain3/mamamia/internal/service/responder"
	"github.com/AHasnain3/mamamia/internal/service/session"
	"github.com/AHasnain3/mamamia/internal/service/triage"
	"github.com/AHasnain3/mamamia/internal/store/memory"
)

type stubClient struct {
	verdict responder.Verdict
	draft   string
}

func (s *stubClient) Respond(_ context.Context, _ responder.Request) (responder.Verdict, error) {
	return s.verdict, nil
}

func (s *stubClient) Draft(_ context.Context, _ responder.Request) (string, error) {
	return s.draft, nil
}

func (s *stubClient) Stream(_ context.Context, _ responder.Request) (responder.TokenStream, error) {
	return nil, errors.New("not streaming in tests")
}

func setupRouter(t *testing.T, client responder.Client) (*chi.Mux, *memory.Store) {
	t.Helper()
	st := memory.New()
	if _, err := st.CreatePatient(context.Background(), model.Patient{
		ID:            "p1",
		PreferredName: "Maya",
		Timezone:      "America/New_York",
	}); err != nil {
		t.Fatalf("CreatePatient err: %v", err)
	}

	turns := chatService.New(st, session.New(st), triage.New(client), oversight.ModelMeta{}, nil)
	handler := New(turns, st)

	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.PatientResolver(st))
		handler.RegisterRoutes(gr)
	})
	return r, st
}

func doJSON(t *testing.T, r http.Handler, method, path, patientID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal err: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if patientID != "" {
		req.Header.Set("X-Patient-ID", patientID)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendTurnSafePath(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{verdict: responder.Verdict{Reply: "hello there"}})

	resp := doJSON(t, r, http.MethodPost, "/chat", "p1", map[string]interface{}{
		"date": "2024-06-15",
		"mode": "mood",
		"text": "just checking in",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Session  model.Session   `json:"session"`
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if out.Session.Mode != model.ModeMood {
		t.Fatalf("unexpected mode: %s", out.Session.Mode)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[1].Content != "hello there" {
		t.Fatalf("unexpected reply: %q", out.Messages[1].Content)
	}
}

func TestSendTurnHidesAuditRow(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{draft: "provider draft"})

	resp := doJSON(t, r, http.MethodPost, "/chat", "p1", map[string]interface{}{
		"date": "2024-06-15",
		"mode": "health",
		"text": "I'm having chest pain",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}

	// Patient view: her message plus the placeholder, never the proposed
	// draft content.
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(out.Messages))
	}
	last := out.Messages[1]
	if last.Oversight != model.OversightAwaiting {
		t.Fatalf("expected awaiting placeholder, got %s", last.Oversight)
	}
	if last.Content != chatService.PlaceholderText {
		t.Fatalf("draft content leaked to patient view: %q", last.Content)
	}
}

func TestSendTurnEmptyText(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{})

	resp := doJSON(t, r, http.MethodPost, "/chat", "p1", map[string]interface{}{
		"date": "2024-06-15",
		"text": "   ",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendTurnMissingPatientHeader(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{})

	resp := doJSON(t, r, http.MethodPost, "/chat", "", map[string]interface{}{"text": "hi"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendTurnUnknownPatient(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{})

	resp := doJSON(t, r, http.MethodPost, "/chat", "nobody", map[string]interface{}{"text": "hi"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSendTurnForeignSessionForbidden(t *testing.T) {
	r, st := setupRouter(t, &stubClient{verdict: responder.Verdict{Reply: "ok"}})
	if _, err := st.CreatePatient(context.Background(), model.Patient{ID: "p2", Timezone: "UTC"}); err != nil {
		t.Fatalf("CreatePatient err: %v", err)
	}

	first := doJSON(t, r, http.MethodPost, "/chat", "p1", map[string]interface{}{
		"date": "2024-06-15",
		"text": "mine",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	var out struct {
		Session model.Session `json:"session"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/chat", "p2", map[string]interface{}{
		"sessionId": out.Session.ID,
		"text":      "not mine",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestLoadCreatesSessionWithoutMessages(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{})

	resp := doJSON(t, r, http.MethodGet, "/chat?date=2024-06-15&mode=bonding", "p1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Session  model.Session   `json:"session"`
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if out.Session.Mode != model.ModeBonding {
		t.Fatalf("unexpected mode: %s", out.Session.Mode)
	}
	if len(out.Messages) != 0 {
		t.Fatalf("load must not write messages, got %d", len(out.Messages))
	}
}

func TestListSessionsForDay(t *testing.T) {
	r, _ := setupRouter(t, &stubClient{verdict: responder.Verdict{Reply: "ok"}})

	for i := 0; i < 2; i++ {
		resp := doJSON(t, r, http.MethodPost, "/chat", "p1", map[string]interface{}{
			"date":    "2024-06-15",
			"text":    "hello",
			"newChat": true,
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
	}

	resp := doJSON(t, r, http.MethodGet, "/chat/sessions?date=2024-06-15", "p1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out struct {
		Sessions []model.Session `json:"sessions"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(out.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(out.Sessions))
	}
	if out.Sessions[0].SeqInDay != 1 || out.Sessions[1].SeqInDay != 2 {
		t.Fatalf("sessions must be ordered by seq: %+v", out.Sessions)
	}
}
