// Package patient exposes patient account endpoints.
package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AHasnain3/mamamia/internal/auth"
	"github.com/AHasnain3/mamamia/internal/middleware"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

// Handler serves patient authentication and profile routes.
type Handler struct {
	store  store.Store
	tokens *auth.TokenIssuer
}

// New creates the patient handler.
func New(st store.Store, tokens *auth.TokenIssuer) *Handler {
	return &Handler{store: st, tokens: tokens}
}

// RegisterRoutes attaches the public auth route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/patients/auth", h.handleAuth)
}

// RegisterProfileRoutes attaches routes that need a resolved patient.
func (h *Handler) RegisterProfileRoutes(r chi.Router) {
	r.Get("/patients/me", h.handleMe)
}

type authRequest struct {
	PatientID string `json:"patientId"`
	Password  string `json:"password"`
}

func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	var payload authRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.PatientID = strings.TrimSpace(payload.PatientID)
	if payload.PatientID == "" {
		utils.RespondError(w, http.StatusBadRequest, "patientId is required")
		return
	}

	patient, err := h.store.GetPatient(r.Context(), payload.PatientID)
	if err != nil {
		if errors.Is(err, store.ErrPatientNotFound) {
			utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if err := auth.VerifyPassword(patient.PasswordHash, payload.Password); err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp := map[string]interface{}{
		"patientId":     patient.ID,
		"preferredName": patient.PreferredName,
	}
	if h.tokens != nil {
		token, err := h.tokens.Generate(patient.ID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "token generation failed")
			return
		}
		resp["token"] = token
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	patient, ok := middleware.PatientFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "patient not resolved")
		return
	}
	utils.RespondJSON(w, http.StatusOK, patient)
}
