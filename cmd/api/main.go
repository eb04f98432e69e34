package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/accountbook/internal/account"
	accountStore "github.com/MrJamesThe3rd/accountbook/internal/account/store"
	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	balanceStore "github.com/MrJamesThe3rd/accountbook/internal/balance/store"
	"github.com/MrJamesThe3rd/accountbook/internal/config"
	"github.com/MrJamesThe3rd/accountbook/internal/database"
	"github.com/MrJamesThe3rd/accountbook/internal/events"
	accountbookHttp "github.com/MrJamesThe3rd/accountbook/internal/http"
	accountHandler "github.com/MrJamesThe3rd/accountbook/internal/http/account"
	balanceHandler "github.com/MrJamesThe3rd/accountbook/internal/http/balance"
	importHandler "github.com/MrJamesThe3rd/accountbook/internal/http/importcsv"
	txHandler "github.com/MrJamesThe3rd/accountbook/internal/http/transaction"
	"github.com/MrJamesThe3rd/accountbook/internal/importer"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/accountbook/internal/ledger/store"
	"github.com/MrJamesThe3rd/accountbook/internal/metrics"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
	txStore "github.com/MrJamesThe3rd/accountbook/internal/transaction/store"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	collector := metrics.NewCollector()
	opts := []ledger.Option{ledger.WithRecorder(collector)}

	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		opts = append(opts, ledger.WithPublisher(events.NewPublisher(rdb, cfg.Redis.EventsKey)))
		slog.Info("publishing balance events", "key", cfg.Redis.EventsKey)
	}

	var (
		accountService     = account.NewService(accountStore.New(db))
		balanceService     = balance.NewService(balanceStore.New(db))
		transactionService = transaction.NewService(txStore.New(db))
		processor          = ledger.NewProcessor(ledgerStore.New(db), opts...)
		importService      = importer.NewService(processor)
	)

	router := accountbookHttp.New(
		accountbookHttp.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AuthSecret:     cfg.Auth.Secret,
			Timeout:        cfg.Server.Timeout,
		},
		accountHandler.NewHandler(accountService, balanceService),
		balanceHandler.NewHandler(balanceService),
		txHandler.NewHandler(transactionService, processor),
		importHandler.NewHandler(importService),
		collector.Handler(),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "addr", server.Addr, "auth", cfg.Auth.Secret != "")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return nil
}
