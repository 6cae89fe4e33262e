package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"custos/internal/aml"
	amlmetrics "custos/internal/aml/metrics"
	"custos/internal/audit"
	auditmemory "custos/internal/audit/store/memory"
	auditpostgres "custos/internal/audit/store/postgres"
	auditworker "custos/internal/audit/worker"
	jwttoken "custos/internal/jwt_token"
	"custos/internal/kyc"
	kycmetrics "custos/internal/kyc/metrics"
	"custos/internal/platform/config"
	"custos/internal/platform/httpserver"
	"custos/internal/platform/logger"
	"custos/internal/platform/metrics"
	"custos/internal/platform/redis"
	"custos/internal/token"
	tokenmetrics "custos/internal/token/metrics"
	httptransport "custos/internal/transport/http"
	"custos/pkg/platform/sentinel"
)

const shutdownGrace = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, admin endpoints will reject every request")
	}

	httpMetrics := metrics.New()
	ledger := token.NewMemoryLedger()

	var (
		kycStore   kyc.Store
		amlStore   aml.Store
		tokenStore token.Store
		auditStore audit.Store

		kycOpts   []kyc.Option
		amlOpts   []aml.Option
		tokenOpts []token.Option
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		kycStore = kyc.NewPostgres(db)
		amlStore = aml.NewPostgres(db)
		tokenStore = token.NewPostgres(db)
		auditStore = auditpostgres.New(db)

		kycOpts = append(kycOpts, kyc.WithStoreTx(newKYCPostgresTx(db)))
		amlOpts = append(amlOpts, aml.WithStoreTx(newAMLPostgresTx(db)))
		tokenOpts = append(tokenOpts, token.WithStoreTx(newTokenPostgresTx(db)))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		kycStore = kyc.NewInMemoryStore()
		amlStore = aml.NewInMemoryStore()
		tokenStore = token.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		amlOpts = append(amlOpts,
			aml.WithCache(aml.NewRedisBlacklistCache(redisClient.Client, cfg.BlacklistCacheTTL)))
	}

	// Audit pipeline: services publish into a buffered channel and a single
	// worker persists in the background. The worker runs on its own context
	// so it keeps draining until the HTTP server has finished shutting down
	// and events from in-flight requests still land in the store.
	inbox := make(chan audit.Event, cfg.AuditBufferSize)
	auditor := audit.NewPublisher(inbox, log)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	worker := auditworker.New(auditStore, inbox, log)
	var workerDone sync.WaitGroup
	workerDone.Add(1)
	go func() {
		defer workerDone.Done()
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	kycService := kyc.NewService(kycStore, append(kycOpts,
		kyc.WithAuditor(auditor),
		kyc.WithMetrics(kycmetrics.New()),
		kyc.WithLogger(log),
	)...)
	amlService := aml.NewService(amlStore, append(amlOpts,
		aml.WithAuditor(auditor),
		aml.WithMetrics(amlmetrics.New()),
		aml.WithLogger(log),
	)...)
	tokenService := token.NewService(tokenStore, ledger, kycService, amlService, append(tokenOpts,
		token.WithAuditor(auditor),
		token.WithMetrics(tokenmetrics.New()),
		token.WithLogger(log),
	)...)

	if err := syncLedgerDelegate(ctx, tokenStore, ledger); err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	handler := httptransport.New(httptransport.Config{
		KYC:            kycService,
		AML:            amlService,
		Token:          tokenService,
		Audit:          auditStore,
		JWTValidator:   jwttoken.NewJWTServiceAdapter(jwtService),
		AdminTokenHash: cfg.AdminTokenHash,
		Logger:         log,
		Metrics:        httpMetrics,
	})
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Addr, router)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting custos", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = err
	case <-ctx.Done():
		log.Info("shutdown signal received")
		if err := httpserver.Shutdown(srv, shutdownGrace); err != nil {
			runErr = fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	stopWorker()
	workerDone.Wait()
	return runErr
}

// syncLedgerDelegate rehydrates the in-process ledger's permanent delegate
// after a restart, so seizures keep working for a mint initialized by an
// earlier process.
func syncLedgerDelegate(ctx context.Context, store token.Store, ledger *token.MemoryLedger) error {
	info, err := store.MintInfo(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load mint info: %w", err)
	}
	ledger.SetDelegate(info.PermanentDelegate)
	return nil
}
