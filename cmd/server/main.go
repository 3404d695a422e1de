package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adaptive-reader/backend/internal/adaptive"
	"github.com/adaptive-reader/backend/internal/auth"
	"github.com/adaptive-reader/backend/internal/chunker"
	"github.com/adaptive-reader/backend/internal/config"
	"github.com/adaptive-reader/backend/internal/database"
	"github.com/adaptive-reader/backend/internal/extract"
	"github.com/adaptive-reader/backend/internal/generator"
	"github.com/adaptive-reader/backend/internal/middleware"
	"github.com/adaptive-reader/backend/internal/progress"
	"github.com/adaptive-reader/backend/internal/reading"
	"github.com/adaptive-reader/backend/internal/scheduler"
	"github.com/adaptive-reader/backend/internal/session"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Live sessions
	var sessionStore session.Store
	var evictor scheduler.Evictor
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb, cfg.Redis.SessionTTL)
		log.Printf("Sessions stored in redis at %s (ttl %s)", cfg.Redis.Addr, cfg.Redis.SessionTTL)
	} else {
		mem := session.NewMemoryStore()
		sessionStore, evictor = mem, mem
		log.Printf("Sessions stored in memory")
	}

	// Language model
	llm, model, err := generator.NewClient(ctx, generator.Options{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey(),
		BaseURL:     cfg.LLM.OpenAIBaseURL,
		CLIPath:     cfg.LLM.CLIPath,
		MaxAttempts: cfg.LLM.MaxAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	tutor := generator.NewTutor(llm, model, cfg.LLM.Timeout)
	log.Printf("LLM provider=%q model=%q", cfg.LLM.Provider, model)

	// Chunking
	var textChunker chunker.Chunker = chunker.NewParagraphChunker(cfg.Chunker.ChunkSize)
	if !cfg.Chunker.LocalOnly {
		textChunker = &chunker.Fallback{
			Primary:   chunker.NewHTTPChunker(cfg.Chunker.URL, cfg.Chunker.APIKey, cfg.Chunker.ChunkSize, cfg.Chunker.Timeout),
			Secondary: textChunker,
		}
	}

	// Initialize services
	ledger := progress.NewLedger(progress.NewPostgresStore(db))
	readingService := reading.NewService(
		session.NewManager(sessionStore),
		ledger,
		textChunker,
		tutor,
		extract.NewFetcher(0),
		reading.Options{
			Adaptation: adaptive.Config{
				MinChunkLength:            cfg.Adaptation.MinChunkLength,
				DefaultDifficulty:         cfg.Adaptation.DefaultDifficulty,
				ReportSimplifiedOnFailure: cfg.Adaptation.ReportSimplifiedOnFailure,
			},
			NeutralPerformance: cfg.Adaptation.NeutralPerformance,
		},
	)

	// Initialize handlers
	secret := []byte(cfg.Server.JWTSecret)
	authHandler := auth.NewHandler(auth.NewPostgresStore(db), secret)
	readingHandler := reading.NewHandler(readingService)
	progressHandler := progress.NewHandler(ledger)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(secret))
	protected.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	readingHandler.RegisterRoutes(protected)
	progressHandler.RegisterRoutes(protected)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"database unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// Housekeeping
	jobs := scheduler.New(evictor, ledger, cfg.Scheduler)
	if err := jobs.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: graceful shutdown failed: %v", err)
	}
}
