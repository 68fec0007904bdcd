package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AHasnain3/mamamia/internal/auth"
	chatHandler "github.com/AHasnain3/mamamia/internal/handler/chat"
	patientHandler "github.com/AHasnain3/mamamia/internal/handler/patient"
	providerHandler "github.com/AHasnain3/mamamia/internal/handler/provider"
	streamHandler "github.com/AHasnain3/mamamia/internal/handler/stream"
	middlewarePkg "github.com/AHasnain3/mamamia/internal/middleware"
	"github.com/AHasnain3/mamamia/internal/service/approval"
	chatService "github.com/AHasnain3/mamamia/internal/service/chat"
	"github.com/AHasnain3/mamamia/internal/service/notify"
	"github.com/AHasnain3/mamamia/internal/service/responder"
	"github.com/AHasnain3/mamamia/internal/store"
)

// Deps carries everything the router needs wired.
type Deps struct {
	Store     store.Store
	Turns     *chatService.Service
	Approval  *approval.Service
	Responder responder.Client
	Hub       *notify.Hub
	Tokens    *auth.TokenIssuer
	Streaming bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(d.Turns, d.Store)
	streamH := streamHandler.New(d.Turns, d.Responder, d.Streaming)
	providerH := providerHandler.New(d.Store, d.Approval, d.Hub)
	patientH := patientHandler.New(d.Store, d.Tokens)

	r.Route("/api", func(api chi.Router) {
		patientH.RegisterRoutes(api)

		// Patient-facing routes require a resolved patient identity.
		api.Group(func(pr chi.Router) {
			pr.Use(middlewarePkg.PatientResolver(d.Store))
			chatH.RegisterRoutes(pr)
			pr.Post("/chat/stream", streamH.HandleTurn)
			patientH.RegisterProfileRoutes(pr)
		})

		// Provider routes sit behind token auth when a secret is configured.
		api.Group(func(pv chi.Router) {
			pv.Use(middlewarePkg.ProviderAuth(d.Tokens))
			providerH.RegisterRoutes(pv)
		})
	})

	return r
}
