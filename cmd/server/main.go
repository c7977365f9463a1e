package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"wastetrack/internal/bordereau/appendix"
	"wastetrack/internal/bordereau/metrics"
	"wastetrack/internal/bordereau/ports"
	"wastetrack/internal/bordereau/revision"
	"wastetrack/internal/bordereau/store"
	"wastetrack/internal/bordereau/workflow"
	"wastetrack/internal/company"
	"wastetrack/internal/index"
	"wastetrack/internal/platform/config"
	"wastetrack/internal/platform/httpserver"
	"wastetrack/internal/platform/logger"
	"wastetrack/internal/platform/redis"
	httptransport "wastetrack/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.NewStructured()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StatementTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	var notifier ports.Notifier = index.NewRecorder()
	if redisClient != nil {
		notifier = index.NewRedis(redisClient, cfg.IndexQueue,
			index.WithMetrics(m), index.WithLogger(log))
	} else {
		log.Warn("redis not configured, reindex notifications are discarded")
	}

	st := store.NewPostgres(db)
	codes := company.NewPostgresVerifier(db)

	linkage, err := appendix.New(st,
		appendix.WithNotifier(notifier),
		appendix.WithLogger(log),
	)
	if err != nil {
		log.Error("build appendix manager", "error", err)
		os.Exit(1)
	}
	engine, err := workflow.New(st,
		workflow.WithNotifier(notifier),
		workflow.WithSecurityCodeVerifier(codes),
		workflow.WithAppendix(linkage),
		workflow.WithMetrics(m),
		workflow.WithLogger(log),
	)
	if err != nil {
		log.Error("build workflow service", "error", err)
		os.Exit(1)
	}
	revisions := revision.New(st,
		revision.WithNotifier(notifier),
		revision.WithMetrics(m),
		revision.WithLogger(log),
	)

	handler := httptransport.New(engine, linkage, revisions, st, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, db, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting wastetrack", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
