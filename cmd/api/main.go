package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/handlers"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/qrcode"
	"github.com/gravadigital/billetterie-api/internal/server"
	"github.com/gravadigital/billetterie-api/internal/services"
	"github.com/gravadigital/billetterie-api/internal/signature"
	"github.com/gravadigital/billetterie-api/internal/storage"
	"github.com/gravadigital/billetterie-api/internal/storage/objects"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logger.Initialize(cfg.Log.Level)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageType, err := storage.ValidateStorageType(cfg.Storage.Type)
	if err != nil {
		log.Fatal("Invalid storage configuration", "error", err)
	}
	store, err := storage.NewFactory(storageType).CreateContainer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage", "type", storageType, "error", err)
	}

	signer, err := signature.FromConfig(cfg)
	if err != nil {
		log.Fatal("Failed to initialize signer", "error", err)
	}

	images, err := objects.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize image storage", "error", err)
	}

	notifier, err := notification.FromConfig(ctx, cfg, store.Notifications())
	if err != nil {
		log.Fatal("Failed to initialize notifier", "type", cfg.Notifier.Type, "error", err)
	}

	v := validation.New(cfg.Registration.MinYearOfBirth)

	eventService := services.NewEventService(store, images, v)
	bookerService := services.NewBookerService(store, v, signer, notifier.Notifier)
	registrationService := services.NewRegistrationService(store, v, notifier.Notifier, qrcode.NewGenerator(), cfg.Registration.MaxBatchSize)
	checkInService := services.NewCheckInService(store)

	srv := server.New(cfg, store, server.Handlers{
		Events:        handlers.NewEventHandler(eventService),
		Bookers:       handlers.NewBookerHandler(bookerService, cfg.Server.BaseURL),
		Registrations: handlers.NewRegistrationHandler(registrationService, cfg.Server.BaseURL),
		CheckIns:      handlers.NewCheckInHandler(checkInService),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// pending notifications are flushed before the store goes away
	notifier.Close()

	if err := store.Close(); err != nil {
		log.Error("Failed to close storage", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}
