package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	backend "github.com/orchardlane/backend"
	"github.com/orchardlane/backend/internal/auth"
	"github.com/orchardlane/backend/internal/config"
	"github.com/orchardlane/backend/internal/coupons"
	"github.com/orchardlane/backend/internal/dashboard"
	"github.com/orchardlane/backend/internal/handlers"
	"github.com/orchardlane/backend/internal/ledger"
	"github.com/orchardlane/backend/internal/loyalty"
	"github.com/orchardlane/backend/internal/middleware"
	"github.com/orchardlane/backend/internal/orders"
	"github.com/orchardlane/backend/internal/repository"
	"github.com/orchardlane/backend/internal/router"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	loyaltyCfg, err := cfg.LoadMilestones()
	if err != nil {
		slog.Error("Invalid milestone configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to connect to PostgreSQL. Ensure Postgres is running, e.g. make dev-up", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	migrationsFS, err := fs.Sub(backend.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("Failed to open embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("Database migrations failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	milestoneRepo := repository.NewMilestoneRepo(pool)
	couponRepo := repository.NewCouponRepo(pool)

	// Ledger & loyalty engine
	ledgerSvc := ledger.NewService(userRepo, ledgerRepo)
	issuer := loyalty.NewVoucherIssuer(couponRepo)
	loyaltySvc := loyalty.NewService(pool, userRepo, ledgerSvc, milestoneRepo, issuer, loyaltyCfg, logger)

	// Orders: sweep insert func is set after the River client exists
	// (breaks the init cycle between the client and its worker's service).
	var insertMu sync.Mutex
	var insertFn orders.InsertMilestoneSweepTxFunc
	insertSweep := func(ctx context.Context, tx pgx.Tx, args loyalty.MilestoneSweepArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	ordersSvc := orders.NewService(pool, ledgerSvc, insertSweep, loyaltyCfg.PointsPerPound, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, loyalty.NewMilestoneSweepWorker(loyaltySvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args loyalty.MilestoneSweepArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth
	authSvc := auth.NewService(userRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	// Coupons
	couponsSvc := coupons.NewService(pool, couponRepo, logger)
	couponsHandler := coupons.NewHandler(couponsSvc, logger)

	// HTTP handlers
	loyaltyHandler := &handlers.LoyaltyHandler{Svc: loyaltySvc, Ledger: ledgerSvc, Logger: logger}
	ordersHandler := &handlers.OrdersHandler{Svc: ordersSvc, Logger: logger}
	dashHandler := dashboard.NewHandler(couponRepo, milestoneRepo, ledgerRepo, userRepo, logger)

	authMW := middleware.Auth(authSvc, userRepo)
	apiRouter := router.New(authHandler, loyaltyHandler, ordersHandler, couponsHandler, dashHandler, authMW)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (processes milestone sweeps)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
