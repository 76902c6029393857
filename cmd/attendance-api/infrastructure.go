// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/natsserver"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// drainTimeout bounds how long pending NATS messages are flushed on shutdown.
const drainTimeout = 10 * time.Second

// startEmbeddedNATS runs a single node NATS server with JetStream in process.
func startEmbeddedNATS(cfg natsConfig) (*natsserver.EmbeddedServer, error) {
	serverCfg := natsserver.DefaultConfig()
	serverCfg.StoreDir = cfg.StoreDir

	srv, err := natsserver.Start(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("start embedded NATS server: %w", err)
	}
	slog.With("url", srv.ClientURL(), "store_dir", cfg.StoreDir).Info("embedded NATS server started")
	return srv, nil
}

// setupNATS connects to NATS. The connection's closed handler releases the
// graceful close wait group, and signals done when the connection is lost
// outside of a shutdown.
func setupNATS(ctx context.Context, url string, cfg natsConfig, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)

	natsConn, err := nats.Connect(
		url,
		nats.Name(constants.ServiceName),
		nats.DrainTimeout(drainTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", url).Info("NATS connection established")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.With(logging.ErrKey, err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject, "queue", sub.Queue).Error("async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			defer gracefulCloseWG.Done()
			if ctx.Err() != nil {
				slog.Debug("NATS connection closed gracefully")
				return
			}
			slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	return natsConn, nil
}

// getKeyValueStores opens the attendance bucket of every source collection.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn, cfg natsConfig) (map[models.SourceCollection]store.INatsKeyValue, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	opts := store.BucketOptions{
		Create:  cfg.CreateBuckets || cfg.Embedded,
		History: uint8(cfg.BucketHistory),
		Storage: jetstream.FileStorage,
	}
	return store.OpenBuckets(ctx, js, opts)
}
