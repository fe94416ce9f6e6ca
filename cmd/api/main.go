package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"optionflow/agreement"
	"optionflow/auth"
	"optionflow/db"
	"optionflow/ledger"
	"optionflow/observability"
	"optionflow/oracle"
)

func main() {
	logger := log.New(os.Stderr, "optionflow: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatalf("apply schema: %v", err)
	}

	custody := envOr("CUSTODY_ACCOUNT", "engine")
	book := ledger.NewBook(custody)

	adminParty := os.Getenv("ADMIN_PARTY")
	if adminParty == "" {
		logger.Fatal("ADMIN_PARTY is required")
	}
	guard := auth.NewGuard(adminParty)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}
	adminRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(adminRepo, jwtSecret)

	if email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"); email != "" && password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			logger.Fatalf("hash seed password: %v", err)
		}
		if err := adminRepo.Ensure(ctx, email, hash, adminParty); err != nil {
			logger.Fatalf("seed administrator: %v", err)
		}
	}

	payment, ok := new(big.Int).SetString(envOr("ORACLE_PAYMENT", "1000000000000000000"), 10)
	if !ok {
		logger.Fatal("ORACLE_PAYMENT is not a base-10 integer")
	}
	requestTTL, err := time.ParseDuration(envOr("ORACLE_REQUEST_TTL", "5m"))
	if err != nil {
		logger.Fatalf("parse ORACLE_REQUEST_TTL: %v", err)
	}

	oracleRepo := oracle.NewRepository(pool)
	gateway := oracle.NewGateway(pool, oracleRepo, guard, book, oracle.Config{
		OracleID:        os.Getenv("ORACLE_ID"),
		Payment:         payment,
		PricingJobID:    os.Getenv("PRICING_JOB_ID"),
		SettlementJobID: os.Getenv("SETTLEMENT_JOB_ID"),
		RequestTTL:      requestTTL,
		Custody:         custody,
	})

	metrics := observability.NewMetrics("optionflow")
	agreements := agreement.NewService(pool, agreement.NewRepository(), book, gateway, metrics)

	dispatchInterval, err := time.ParseDuration(envOr("DISPATCH_INTERVAL", "5s"))
	if err != nil {
		logger.Fatalf("parse DISPATCH_INTERVAL: %v", err)
	}
	dispatcher := oracle.NewDispatcher(
		oracleRepo,
		oracle.NewHTTPClient(os.Getenv("ORACLE_URL")),
		book,
		dispatchInterval,
		logger,
	)

	srv := &server{
		agreements: agreements,
		gateway:    gateway,
		authSvc:    authSvc,
		guard:      guard,
		metrics:    metrics,
		logger:     logger,
	}

	httpSrv := &http.Server{
		Addr:              envOr("HTTP_ADDR", ":8080"),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("shutdown: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
