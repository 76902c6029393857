// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Frame types sent on a live stream.
const (
	frameRecords = "records"
	frameSummary = "summary"
	frameError   = "error"
)

// liveFrame is one websocket message of a live stream.
type liveFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *AttendanceAPI) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.checkOrigin,
	}
}

// checkOrigin accepts clients without an Origin header and browsers from an
// allowed origin.
func (s *AttendanceAPI) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get(constants.OriginHeader)
	if origin == "" {
		return true
	}
	if slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin) {
		return true
	}
	slog.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
	return false
}

// StreamAttendance streams the filtered attendance list. A new list is sent
// every time the underlying collections change.
func (s *AttendanceAPI) StreamAttendance(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	s.serveLive(w, r, func(ctx context.Context, stream *liveStream) (domain.CancelFunc, error) {
		return s.service.SubscribeToAttendanceList(ctx, filter,
			func(records []models.AttendanceRecord) {
				if records == nil {
					records = []models.AttendanceRecord{}
				}
				stream.send(liveFrame{Type: frameRecords, Data: records})
			},
			stream.sendError,
		)
	})
}

// StreamAttendanceSummary streams the attendance summary of a date range.
func (s *AttendanceAPI) StreamAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	dates := dateRangeFromQuery(r)
	s.serveLive(w, r, func(ctx context.Context, stream *liveStream) (domain.CancelFunc, error) {
		return s.service.SubscribeToAttendanceSummary(ctx, dates,
			func(summary models.AttendanceSummary) {
				stream.send(liveFrame{Type: frameSummary, Data: summary})
			},
			stream.sendError,
		)
	})
}

type subscribeFunc func(ctx context.Context, stream *liveStream) (domain.CancelFunc, error)

// serveLive upgrades the request and keeps one live view open for as long as
// the client stays connected.
func (s *AttendanceAPI) serveLive(w http.ResponseWriter, r *http.Request, subscribe subscribeFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopAfter := context.AfterFunc(s.streamsCtx, cancel)
	defer stopAfter()

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		slog.WarnContext(ctx, "websocket upgrade failed", logging.ErrKey, err)
		return
	}

	stream := newLiveStream(conn)

	teardown, err := subscribe(ctx, stream)
	if err != nil {
		slog.WarnContext(ctx, "live subscription rejected", logging.ErrKey, err)
		stream.reject(err)
		return
	}
	defer teardown()

	slog.DebugContext(ctx, "live stream opened")
	go stream.writeLoop(ctx)
	stream.readLoop()
	slog.DebugContext(ctx, "live stream closed")
}

// liveStream serializes frames onto a websocket connection. Frames are
// written by a single goroutine; readLoop only watches for the client leaving.
type liveStream struct {
	conn     *websocket.Conn
	out      chan liveFrame
	done     chan struct{}
	stopOnce sync.Once
}

func newLiveStream(conn *websocket.Conn) *liveStream {
	return &liveStream{
		conn: conn,
		out:  make(chan liveFrame, 16),
		done: make(chan struct{}),
	}
}

// send queues a frame. It blocks while the queue is full and returns without
// sending once the stream has stopped.
func (ls *liveStream) send(frame liveFrame) {
	select {
	case ls.out <- frame:
	case <-ls.done:
	}
}

func (ls *liveStream) sendError(err error) {
	ls.send(liveFrame{Type: frameError, Error: err.Error()})
}

func (ls *liveStream) stop() {
	ls.stopOnce.Do(func() { close(ls.done) })
}

// reject reports a failed subscription and closes the connection.
func (ls *liveStream) reject(err error) {
	defer ls.conn.Close()
	ls.stop()

	if data, marshalErr := json.Marshal(liveFrame{Type: frameError, Error: err.Error()}); marshalErr == nil {
		_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ls.conn.WriteMessage(websocket.TextMessage, data)
	}
	closeCode := websocket.CloseInternalServerErr
	if domain.GetErrorType(err) == domain.ErrorTypeValidation {
		closeCode = websocket.ClosePolicyViolation
	}
	_ = ls.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, "subscription rejected"),
		time.Now().Add(writeWait))
}

// writeLoop sends queued frames and keepalive pings until the stream stops
// or ctx ends. It owns closing the connection.
func (ls *liveStream) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ls.stop()
		_ = ls.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = ls.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ls.done:
			return
		case frame := <-ls.out:
			data, err := json.Marshal(frame)
			if err != nil {
				slog.ErrorContext(ctx, "error encoding live frame", logging.ErrKey, err)
				continue
			}
			_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ls.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.DebugContext(ctx, "error writing live frame", logging.ErrKey, err)
				return
			}
		case <-ticker.C:
			if err := ls.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and returns once the client disconnects
// or stops answering pings.
func (ls *liveStream) readLoop() {
	defer ls.stop()

	ls.conn.SetReadLimit(maxMessageSize)
	_ = ls.conn.SetReadDeadline(time.Now().Add(pongWait))
	ls.conn.SetPongHandler(func(string) error {
		return ls.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ls.conn.ReadMessage(); err != nil {
			return
		}
	}
}
