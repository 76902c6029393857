// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/natsserver"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// createNatsSubcriptions registers the attendance query handler on its
// subjects. Handlers keep running while the connection drains, so they get a
// context that outlives the shutdown signal.
func createNatsSubcriptions(ctx context.Context, handler *handlers.AttendanceHandler, natsConn *nats.Conn) ([]*nats.Subscription, error) {
	subjects := handler.Subjects()
	slog.With("subjects", subjects, "queue", constants.AttendanceAPIQueue).Info("subscribing to NATS subjects")

	return messaging.Subscribe(context.WithoutCancel(ctx), natsConn, constants.AttendanceAPIQueue, handler, subjects...)
}

// shutdownDeps are the resources released by gracefulShutdown, in order.
type shutdownDeps struct {
	httpServer   *http.Server
	natsConn     *nats.Conn
	subs         []*nats.Subscription
	embedded     *natsserver.EmbeddedServer
	otelShutdown func(context.Context) error
}

// gracefulShutdown stops the HTTP server, drains NATS and waits for both to
// finish before stopping the embedded server and flushing telemetry.
func gracefulShutdown(deps shutdownDeps, timeout time.Duration, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("graceful shutdown started")

	// Mark the shutdown as expected before the NATS connection closes.
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	go func() {
		if err := deps.httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	messaging.Drain(ctx, deps.subs)
	if !deps.natsConn.IsClosed() {
		if err := deps.natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			deps.natsConn.Close()
		}
	}

	waitDone := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		slog.Debug("http server and NATS connection closed")
	case <-ctx.Done():
		slog.Warn("graceful shutdown timed out")
	}

	if deps.embedded != nil {
		if err := deps.embedded.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("embedded NATS shutdown error")
		}
	}

	if deps.otelShutdown != nil {
		if err := deps.otelShutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("telemetry shutdown error")
		}
	}

	slog.Info("graceful shutdown complete")
}
