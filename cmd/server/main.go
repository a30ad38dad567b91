package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projectcompanion/config"
	"projectcompanion/internal/actions"
	"projectcompanion/internal/chat"
	"projectcompanion/internal/handler"
	"projectcompanion/internal/httpserver"
	"projectcompanion/internal/repository"
	"projectcompanion/internal/service"
	"projectcompanion/internal/store"
	"projectcompanion/pkg/db"
	"projectcompanion/pkg/logger"
	"projectcompanion/pkg/mq"
	pkgredis "projectcompanion/pkg/redis"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting project companion...",
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("mq_enabled", cfg.MQ.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	ctx := context.Background()

	// Persistence: Postgres snapshot tables or a single JSON file.
	var persist store.Persistence
	var dbPool *pgxpool.Pool
	switch cfg.DB.Driver {
	case "postgres":
		log.Info("Initializing database connection...")
		pool, err := db.NewConnection(cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer pool.Close()
		dbPool = pool

		pgRepo := repository.NewPostgresSnapshotRepository(pool, log)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure DB schema", zap.Error(err))
		}
		persist = pgRepo
		log.Info("Database connection established successfully")
	case "file":
		persist = repository.NewFileSnapshotRepository(cfg.DB.FilePath, log)
		log.Info("Using file persistence", zap.String("path", cfg.DB.FilePath))
	default:
		log.Fatal("Unknown db driver", zap.String("driver", cfg.DB.Driver))
	}

	// Domain event publisher (optional).
	var publisher *mq.Publisher
	if cfg.MQ.Enabled {
		log.Info("Initializing MQ publisher...", zap.String("url", cfg.MQ.URL))
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
		log.Info("MQ publisher initialized successfully")
	}

	st := store.New(persist, storePublisher(publisher), log)
	if err := st.Load(ctx); err != nil {
		log.Fatal("Failed to load snapshot", zap.Error(err))
	}

	reconciler := actions.NewReconciler(st, log)
	assistant := service.NewAssistantClient(cfg.AI)
	session := chat.NewSession(st, assistant, reconciler, cfg.AI.HistoryLimit, log)

	// Conversation history mirror (optional).
	if cfg.Redis.Enabled {
		log.Info("Initializing Redis history mirror...", zap.String("addr", cfg.Redis.Addr))
		rdb := pkgredis.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		session.SetMirror(ctx, repository.NewRedisHistoryRepository(rdb, log))
	}

	handlers := httpserver.Handlers{
		Project:   handler.NewProjectHandler(st, log),
		Milestone: handler.NewMilestoneHandler(st, log),
		Task:      handler.NewTaskHandler(st, log),
		Chat:      handler.NewChatHandler(session, log),
	}
	router := httpserver.NewRouter(handlers, cfg.Server, log, dbPool, publisher)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("project companion is fully initialized and running",
		zap.String("addr", srv.Addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Shutdown complete")
}

// storePublisher keeps the store's publisher nil when events are disabled,
// so a typed nil never reaches the interface check.
func storePublisher(p *mq.Publisher) store.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
