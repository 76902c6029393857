// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the attendance service API that serves attendance records,
// summaries and live views over HTTP and answers attendance queries on NATS.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/natsserver"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/utils"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error loading configuration")
		os.Exit(1)
	}
	flags := parseFlags(cfg.HTTP.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		return
	}

	natsURL := cfg.NATS.URL
	var embedded *natsserver.EmbeddedServer
	if cfg.NATS.Embedded {
		embedded, err = startEmbeddedNATS(cfg.NATS)
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error starting embedded NATS server")
			return
		}
		natsURL = embedded.ClientURL()
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, natsURL, cfg.NATS, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	buckets, err := getKeyValueStores(ctx, natsConn, cfg.NATS)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	// Initialize services
	attendanceService := service.NewAttendanceService(
		store.NewNatsAttendanceRepository(buckets),
		store.NewNatsAttendanceWatcher(buckets),
		messaging.NewMessageBuilder(natsConn),
		service.ServiceConfig{
			DeleteWorkers: cfg.Service.DeleteWorkers,
			FetchWorkers:  cfg.Service.FetchWorkers,
		},
	)

	// Initialize handlers
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService)
	api := NewAttendanceAPI(attendanceService, cfg.HTTP.CORSAllowedOrigins)

	httpServer := setupHTTPServer(flags, api, cfg.HTTP, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	subs, err := createNatsSubcriptions(ctx, attendanceHandler, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(shutdownDeps{
		httpServer:   httpServer,
		natsConn:     natsConn,
		subs:         subs,
		embedded:     embedded,
		otelShutdown: otelShutdown,
	}, cfg.HTTP.ShutdownTimeout, &gracefulCloseWG, cancel)
}
