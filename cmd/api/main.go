package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Call-Sure-AI/csai-realtime/internal/analytics"
	"github.com/Call-Sure-AI/csai-realtime/internal/audit"
	"github.com/Call-Sure-AI/csai-realtime/internal/auth"
	"github.com/Call-Sure-AI/csai-realtime/internal/campaign"
	"github.com/Call-Sure-AI/csai-realtime/internal/config"
	"github.com/Call-Sure-AI/csai-realtime/internal/conversation"
	"github.com/Call-Sure-AI/csai-realtime/internal/dialer"
	"github.com/Call-Sure-AI/csai-realtime/internal/httpapi"
	"github.com/Call-Sure-AI/csai-realtime/internal/realtime"
	"github.com/Call-Sure-AI/csai-realtime/internal/ws"
	"github.com/Call-Sure-AI/csai-realtime/pkg/logger"
	"github.com/Call-Sure-AI/csai-realtime/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Realtime fan-out
	hub := realtime.NewHub(log)
	pusher := realtime.NewPusher(hub, log)

	// Domain services, wired bottom-up
	auditSvc := audit.NewService(audit.NewPostgresRepository(db), log)
	analyticsSvc := analytics.NewService(
		analytics.NewPostgresRepository(db),
		rdb,
		realtime.NewCompanyNotifier(hub),
		log,
	)
	conversations := conversation.NewManager(
		conversation.NewPostgresStore(db),
		conversation.NewAnalyticsAdapter(analyticsSvc),
		log,
	)
	orchestrator := campaign.NewOrchestrator(
		campaign.NewPostgresRepository(db),
		dialer.NewHTTPDialer(cfg.Dialer, log),
		auditSvc,
		campaign.NewStatusCache(rdb, log),
		log,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	wsHandlers := ws.NewHandlers(authManager, conversations, orchestrator, analyticsSvc, hub, pusher, cfg.Realtime, log)
	apiHandlers := httpapi.NewHandlers(orchestrator, conversations, auditSvc, log)
	registerRoutes(r, db, rdb, authManager, wsHandlers, apiHandlers)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No ReadTimeout/WriteTimeout: websocket connections are
		// long-lived and must not be cut by server-wide deadlines.
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	orchestrator.Close()
	hub.Close()
}
