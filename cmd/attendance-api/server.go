// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// newRouter mounts the attendance endpoints and their middleware.
func newRouter(api *AttendanceAPI, cfg httpConfig) http.Handler {
	r := chi.NewRouter()

	// RequestIDMiddleware runs first so every later log line carries the id.
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLoggerMiddleware())
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", constants.ContentTypeHeader, constants.AuthorizationHeader, constants.RequestIDHeader, constants.XOnBehalfOfHeader},
		ExposedHeaders: []string{constants.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/livez", api.Livez)
	r.Get("/readyz", api.Readyz)

	r.Route("/attendance", func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}
		r.Use(api.requireReady)

		r.Get("/", api.GetAttendance)
		r.Post("/", api.CreateAttendance)
		r.Get("/summary", api.GetAttendanceSummary)
		r.Get("/live", api.StreamAttendance)
		r.Get("/summary/live", api.StreamAttendanceSummary)
		r.Delete("/{id}", api.DeleteAttendanceEverywhere)
		r.Delete("/{collection}/{id}", api.DeleteAttendance)
		r.Put("/{collection}/{id}/attendees", api.UpdateAttendanceAttendees)
	})

	return otelhttp.NewHandler(r, constants.ServiceName,
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/livez" && req.URL.Path != "/readyz"
		}),
	)
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, api *AttendanceAPI, cfg httpConfig, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newRouter(api, cfg),
		ReadHeaderTimeout: 3 * time.Second,
	}
	httpServer.RegisterOnShutdown(api.CloseStreams)

	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
