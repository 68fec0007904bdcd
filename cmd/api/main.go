package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/AHasnain3/mamamia/internal/auth"
	"github.com/AHasnain3/mamamia/internal/config"
	"github.com/AHasnain3/mamamia/internal/handler"
	chatModel "github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/service/approval"
	"github.com/AHasnain3/mamamia/internal/service/chat"
	"github.com/AHasnain3/mamamia/internal/service/notify"
	"github.com/AHasnain3/mamamia/internal/service/responder"
	"github.com/AHasnain3/mamamia/internal/service/session"
	"github.com/AHasnain3/mamamia/internal/service/triage"
	"github.com/AHasnain3/mamamia/internal/store"
	"github.com/AHasnain3/mamamia/internal/store/memory"
	"github.com/AHasnain3/mamamia/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer cleanup()

	if cfg.SeedDemo {
		if err := seedDemoPatient(ctx, st); err != nil {
			log.Printf("warning: demo patient seed failed: %v", err)
		}
	}

	client := responder.NewOpenAIClient(responder.Config{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		BaseURL:     cfg.AI.BaseURL,
		Temperature: cfg.AI.Temperature,
	})
	if cfg.AI.Enabled() {
		log.Printf("responder model %s initialized", cfg.AI.Model)
	} else {
		log.Println("responder credentials not configured, using fallback replies")
	}

	hub := notify.NewHub()
	sessions := session.New(st)
	engine := triage.New(client)
	turns := chat.New(st, sessions, engine, client.ModelMeta(), hub)
	approvalSvc := approval.New(st, hub)

	var tokens *auth.TokenIssuer
	if cfg.Auth.TokenSecret != "" {
		tokens = auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
		log.Println("provider token auth enabled")
	} else {
		log.Println("AUTH_TOKEN_SECRET not set, provider auth disabled")
	}

	router := handler.NewRouter(handler.Deps{
		Store:     st,
		Turns:     turns,
		Approval:  approvalSvc,
		Responder: client,
		Hub:       hub,
		Tokens:    tokens,
		Streaming: cfg.AI.Stream,
	})

	startServer(ctx, cfg.Server, router)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Println("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Println("postgres store ready")
	return postgres.New(db), func() { db.Close() }, nil
}

// seedDemoPatient creates a well-known patient for local development.
func seedDemoPatient(ctx context.Context, st store.Store) error {
	const demoID = "demo-patient"
	if _, err := st.GetPatient(ctx, demoID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrPatientNotFound) {
		return err
	}

	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		return err
	}
	_, err = st.CreatePatient(ctx, chatModel.Patient{
		ID:            demoID,
		PreferredName: "Maya",
		Timezone:      "America/New_York",
		Stage:         chatModel.StageUndiagnosed,
		PasswordHash:  hash,
	})
	if err == nil {
		log.Printf("seeded demo patient %s", demoID)
	}
	return err
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("mamamia backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
