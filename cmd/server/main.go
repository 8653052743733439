package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"verikeep/internal/archival/handler"
	"verikeep/internal/archival/lease"
	"verikeep/internal/archival/orchestrator"
	"verikeep/internal/archival/scheduler"
	"verikeep/internal/crypto/fieldcodec"
	"verikeep/internal/platform/config"
	"verikeep/internal/platform/httpserver"
	"verikeep/internal/platform/logger"
	"verikeep/internal/platform/metrics"
	redisplatform "verikeep/internal/platform/redis"
	"verikeep/internal/records/envelope"
	recordstore "verikeep/internal/records/store"
	"verikeep/internal/retention/resolver"
	retentionstore "verikeep/internal/retention/store"
	"verikeep/pkg/domain"
	"verikeep/pkg/notify"
	"verikeep/pkg/platform/audit"
	auditmem "verikeep/pkg/platform/audit/store/memory"
	auditpg "verikeep/pkg/platform/audit/store/postgres"
	auditworker "verikeep/pkg/platform/audit/worker"
)

// main wires the dependencies and keeps the server lifecycle small. Sweep
// logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New(logger.ParseLevel("info")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := fieldcodec.New(cfg.EncryptionKey)
	if err != nil {
		log.Error("failed to initialize field codec", "error", err)
		os.Exit(1)
	}
	env, err := envelope.New(codec, envelope.WithLogger(log))
	if err != nil {
		log.Error("failed to initialize record envelope", "error", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.Ping()
		}
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var (
		auditStore audit.Store
		cfgStore   retentionstore.ConfigStore
		stores     map[domain.RetentionModule]recordstore.ArchivalStore
	)
	if db != nil {
		auditStore = auditpg.New(db)
		cfgStore = retentionstore.NewPostgres(db)
		stores = map[domain.RetentionModule]recordstore.ArchivalStore{
			domain.ModulePANKYC:     recordstore.NewPostgres(db, recordstore.TableVerificationRecords),
			domain.ModuleBankKYC:    recordstore.NewPostgres(db, recordstore.TableVerificationRecords),
			domain.ModuleRecordLink: recordstore.NewPostgres(db, recordstore.TableLinkRecords),
		}
	} else {
		log.Warn("no database configured, running on in-memory stores")
		auditStore = auditmem.NewInMemoryStore()
		cfgStore = retentionstore.NewInMemory()
		stores = map[domain.RetentionModule]recordstore.ArchivalStore{
			domain.ModulePANKYC:     recordstore.NewInMemory(),
			domain.ModuleBankKYC:    recordstore.NewInMemory(),
			domain.ModuleRecordLink: recordstore.NewInMemory(),
		}
	}

	auditPublisher := auditworker.NewPublisher(256, log)
	auditWorker := auditworker.NewWorker(auditStore, auditPublisher.Inbox(), log)
	go func() {
		if err := auditWorker.Run(ctx); err != nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	outbox := notify.NewOutbox(notify.NewLogDispatcher(log), 256, log)
	go func() {
		if err := outbox.Run(ctx); err != nil {
			log.Error("notification outbox stopped", "error", err)
		}
	}()

	var guard lease.Guard = lease.NewLocal()
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		guard, err = lease.NewRedisLease(redisClient, cfg.LeaseTTL)
		if err != nil {
			log.Error("failed to initialize redis lease", "error", err)
			os.Exit(1)
		}
	}

	res, err := resolver.New(cfgStore,
		resolver.WithLogger(log),
		resolver.WithAuditSink(auditPublisher),
	)
	if err != nil {
		log.Error("failed to initialize retention resolver", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	orch, err := orchestrator.New(stores, res, cfgStore, env, outbox,
		orchestrator.WithLogger(log),
		orchestrator.WithAuditSink(auditPublisher),
		orchestrator.WithGuard(guard),
		orchestrator.WithMetrics(m),
		orchestrator.WithSendDelay(cfg.NotifySendDelay),
		orchestrator.WithInterval(cfg.ArchivalInterval),
	)
	if err != nil {
		log.Error("failed to initialize archival orchestrator", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.New(orch, cfg.ArchivalInterval, cfg.HealthInterval,
		scheduler.WithLogger(log))
	if err != nil {
		log.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	sched.StartAll()
	defer sched.StopAll()

	opsHandler := handler.New(sched, orch, log)
	if db != nil {
		opsHandler.AddHealthCheck("postgres", func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}
	if redisClient != nil {
		opsHandler.AddHealthCheck("redis", redisClient.Health)
	}

	router := chi.NewRouter()
	opsHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting verikeep", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
