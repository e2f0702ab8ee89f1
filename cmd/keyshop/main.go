// Package main запускает HTTP-сервер магазина цифровых товаров keyshop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steezkng/keyshop-system/internal/config"
	"github.com/steezkng/keyshop-system/internal/events"
	"github.com/steezkng/keyshop-system/internal/handler"
	"github.com/steezkng/keyshop-system/internal/mailer"
	"github.com/steezkng/keyshop-system/internal/middleware"
	"github.com/steezkng/keyshop-system/internal/paypal"
	"github.com/steezkng/keyshop-system/internal/repository"
	"github.com/steezkng/keyshop-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pgRepo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer pgRepo.Close()
		repo = pgRepo
	} else {
		// Без базы магазин работает на хранилище в памяти: удобно для
		// локальной разработки, содержимое живёт до перезапуска процесса.
		sugar.Info("no database configured, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	bus := events.NewBus()

	svc := service.NewService(repo, bus)
	defer svc.Close()

	if err := svc.SeedIfEmpty(context.Background()); err != nil {
		sugar.Fatalw("seed error", "error", err.Error())
	}

	verifier := paypal.NewClient(cfg.PayPalVerifyAddress)
	deliveryMailer := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	if deliveryMailer == nil {
		sugar.Info("smtp not configured, delivery mail disabled")
	}

	auth := middleware.NewAdminAuth(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, auth, bus, verifier, deliveryMailer, handler.Options{
		MerchantEmail: cfg.MerchantEmail,
		CashAppLink:   cfg.CashAppLink,
		PublicBaseURL: cfg.PublicBaseURL,
		AdminPassword: cfg.AdminPassword,
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting keyshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
