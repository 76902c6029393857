// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// AttendanceAPI serves the attendance REST and live endpoints.
type AttendanceAPI struct {
	service        *service.AttendanceService
	allowedOrigins []string

	// streamsCtx ends every open live stream when the server shuts down.
	streamsCtx  context.Context
	stopStreams context.CancelFunc
}

// NewAttendanceAPI creates a new AttendanceAPI.
func NewAttendanceAPI(service *service.AttendanceService, allowedOrigins []string) *AttendanceAPI {
	streamsCtx, stopStreams := context.WithCancel(context.Background())
	return &AttendanceAPI{
		service:        service,
		allowedOrigins: allowedOrigins,
		streamsCtx:     streamsCtx,
		stopStreams:    stopStreams,
	}
}

// CloseStreams ends all live streams. Hijacked websocket connections are not
// tracked by http.Server.Shutdown, so it is registered as a shutdown hook.
func (s *AttendanceAPI) CloseStreams() {
	s.stopStreams()
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error to its HTTP status code.
func statusFor(err error) int {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the error response matching the error type.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", logging.ErrKey, err,
			"status", code,
			"error_type", domain.GetErrorType(err).String(),
		)
	}
	writeJSON(ctx, w, code, errorResponse{
		Code:    strconv.Itoa(code),
		Message: err.Error(),
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding response", logging.ErrKey, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		slog.DebugContext(ctx, "error writing response", logging.ErrKey, err)
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return domain.NewValidationError("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidationError("invalid request body", domain.ErrUnmarshal, err)
	}
	return nil
}

// Readyz checks if the service is able to take inbound requests.
func (s *AttendanceAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	if !s.service.ServiceReady() {
		handleError(r.Context(), w, domain.NewUnavailableError("service not ready", domain.ErrServiceUnavailable))
		return
	}
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypePlain)
	_, _ = w.Write([]byte("OK\n"))
}

// Livez checks if the service is alive.
func (s *AttendanceAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypePlain)
	_, _ = w.Write([]byte("OK\n"))
}
