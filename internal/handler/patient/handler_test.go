package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AHasnain3/mamamia/internal/auth"
	"github.com/AHasnain3/mamamia/internal/middleware"
	model "github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/store/memory"
)

func setupRouter(t *testing.T, tokens *auth.TokenIssuer) (*chi.Mux, *memory.Store) {
	t.Helper()
	st := memory.New()

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword err: %v", err)
	}
	if _, err := st.CreatePatient(context.Background(), model.Patient{
		ID:            "p1",
		PreferredName: "Maya",
		Timezone:      "America/New_York",
		PasswordHash:  hash,
	}); err != nil {
		t.Fatalf("CreatePatient err: %v", err)
	}

	handler := New(st, tokens)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.PatientResolver(st))
		handler.RegisterProfileRoutes(gr)
	})
	return r, st
}

func postAuth(t *testing.T, r http.Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/patients/auth", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAuthSuccess(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postAuth(t, r, map[string]string{"patientId": "p1", "password": "s3cret"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if out["patientId"] != "p1" || out["preferredName"] != "Maya" {
		t.Fatalf("unexpected body: %v", out)
	}
	if _, ok := out["token"]; ok {
		t.Fatal("no token expected when auth is disabled")
	}
}

func TestAuthIssuesToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	r, _ := setupRouter(t, issuer)

	resp := postAuth(t, r, map[string]string{"patientId": "p1", "password": "s3cret"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	subject, err := issuer.Verify(out.Token)
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if subject != "p1" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestAuthWrongPassword(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postAuth(t, r, map[string]string{"patientId": "p1", "password": "nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthUnknownPatient(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postAuth(t, r, map[string]string{"patientId": "nobody", "password": "s3cret"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMissingPatientID(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postAuth(t, r, map[string]string{"password": "s3cret"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestMeOmitsPasswordHash(t *testing.T) {
	r, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/patients/me", nil)
	req.Header.Set("X-Patient-ID", "p1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if out["id"] != "p1" {
		t.Fatalf("unexpected body: %v", out)
	}
	if _, ok := out["passwordHash"]; ok {
		t.Fatal("password hash must never be serialized")
	}
}
