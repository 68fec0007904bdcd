package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

type contextKey string

const patientKey contextKey = "patient"

// PatientResolver loads the patient named by the trusted X-Patient-ID header.
// Identity verification happens upstream; this service only requires that the
// id resolves to a known patient.
func PatientResolver(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Patient-ID")
			if id == "" {
				utils.RespondError(w, http.StatusBadRequest, "missing X-Patient-ID header")
				return
			}
			patient, err := st.GetPatient(r.Context(), id)
			if errors.Is(err, store.ErrPatientNotFound) {
				utils.RespondError(w, http.StatusNotFound, "patient not found")
				return
			}
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, "failed to resolve patient")
				return
			}
			ctx := context.WithValue(r.Context(), patientKey, patient)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PatientFromContext returns the resolved patient for the request.
func PatientFromContext(ctx context.Context) (chat.Patient, bool) {
	p, ok := ctx.Value(patientKey).(chat.Patient)
	return p, ok
}
