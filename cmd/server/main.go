package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/reframe/reframe/backend-go/internal/asset"
	"github.com/reframe/reframe/backend-go/internal/auth"
	"github.com/reframe/reframe/backend-go/internal/config"
	"github.com/reframe/reframe/backend-go/internal/db"
	mw "github.com/reframe/reframe/backend-go/internal/middleware"
	"github.com/reframe/reframe/backend-go/internal/rig"
	"github.com/reframe/reframe/backend-go/internal/session"
	"github.com/reframe/reframe/backend-go/internal/settings"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Bootstrap(ctx, pool); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}

	queries := db.New(pool)

	authService := auth.NewService(queries, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	settingsService := settings.NewService(queries)
	settingsHandler := settings.NewHandler(settingsService)

	assetHandler := asset.NewHandler(cfg.AssetDir)

	sessionService := session.NewService(queries, settingsService, assetHandler,
		session.DefaultModelFactory(cfg.AIBaseURL, cfg.AIModel))
	sessionHandler := session.NewHandler(sessionService)

	hub := rig.NewHub(sessionService.LoadRig, sessionService.SaveLiveState)
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset endpoints
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/settings/apikey", settingsHandler.GetAPIKey).Methods("GET")
	api.HandleFunc("/settings/apikey", settingsHandler.SetAPIKey).Methods("PUT")
	api.HandleFunc("/settings/apikey", settingsHandler.ClearAPIKey).Methods("DELETE")

	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{sessionId}/prompts", sessionHandler.GeneratePrompts).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/prompts", sessionHandler.ListPrompts).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/session/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, cfg.Origins())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first so every open rig's live state is persisted
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *rig.Hub, authSvc *auth.Service, origins []string) {
	sessionID := mux.Vars(r)["sessionId"]

	// Auth via query param: browsers cannot set headers on websocket upgrades
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := rig.NewClient(hub, conn, userID, sessionID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns converts configured origins (full URLs) into the host
// patterns the websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		patterns = append(patterns, o)
	}
	return patterns
}
