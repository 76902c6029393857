// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// quietPaths are probed by the orchestrator and never logged.
var quietPaths = map[string]bool{
	"/livez":  true,
	"/readyz": true,
}

// RequestLoggerMiddleware attaches request attributes to the context and logs
// one line when a request starts and one when it finishes. Live streams log
// their end when the websocket closes.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now().UTC()
			ctx := requestContext(r)
			r = r.WithContext(ctx)

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			slog.InfoContext(ctx, "HTTP request")

			next.ServeHTTP(ww, r)

			attrs := []any{
				"status", ww.statusCode,
				"bytes", ww.bytes,
				"duration", time.Since(start).String(),
			}
			switch {
			case ww.hijacked:
				slog.InfoContext(ctx, "live stream closed", attrs...)
			case ww.statusCode >= http.StatusInternalServerError:
				slog.WarnContext(ctx, "HTTP response", attrs...)
			default:
				slog.InfoContext(ctx, "HTTP response", attrs...)
			}
		})
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	for _, attr := range []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("query", r.URL.RawQuery),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	} {
		ctx = logging.AppendCtx(ctx, attr)
	}

	if principal := r.Header.Get(constants.XOnBehalfOfHeader); principal != "" {
		ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
		ctx = context.WithValue(ctx, constants.PrincipalContextID, principal)
	}
	return ctx
}

// responseWriter records what the handler wrote.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	hijacked   bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Hijack hands the connection to the websocket upgrader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	conn, buf, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, err
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.hijacked = true
	return conn, buf, nil
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
