// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		incomingID   string
		expectReused bool
	}{
		{
			name:         "caller supplied id is reused",
			incomingID:   "req-123",
			expectReused: true,
		},
		{
			name:         "missing id is generated",
			incomingID:   "",
			expectReused: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = r.Context().Value(constants.RequestIDContextID).(string)
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/attendance", nil)
			if tt.incomingID != "" {
				req.Header.Set(constants.RequestIDHeader, tt.incomingID)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(constants.RequestIDHeader))
			if tt.expectReused {
				assert.Equal(t, tt.incomingID, seen)
			} else {
				_, err := uuid.Parse(seen)
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		principal         string
		handlerStatus     int
		expectedStatus    int
		expectedPrincipal string
	}{
		{
			name:              "principal header is carried in context",
			path:              "/attendance",
			principal:         "usher@example.org",
			handlerStatus:     http.StatusCreated,
			expectedStatus:    http.StatusCreated,
			expectedPrincipal: "usher@example.org",
		},
		{
			name:           "health check passes through",
			path:           "/livez",
			handlerStatus:  http.StatusOK,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var principal string
			handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				principal, _ = r.Context().Value(constants.PrincipalContextID).(string)
				w.WriteHeader(tt.handlerStatus)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.principal != "" {
				req.Header.Set(constants.XOnBehalfOfHeader, tt.principal)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedPrincipal, principal)
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	rw.Flush()

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.Equal(t, 2, rw.bytes)
	assert.True(t, rec.Flushed)

	_, _, err = rw.Hijack()
	assert.Error(t, err)
	assert.False(t, rw.hijacked)
}
