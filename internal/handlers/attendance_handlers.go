// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/service"
)

// AttendanceHandler answers attendance queries sent over NATS request/reply.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
}

func NewAttendanceHandler(attendanceService *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
	}
}

// Subjects returns every subject the handler answers on.
func (h *AttendanceHandler) Subjects() []string {
	return []string{
		models.AttendanceSummaryGetSubject,
		models.AttendanceListGetSubject,
	}
}

func (h *AttendanceHandler) HandlerReady() bool {
	return h.attendanceService.ServiceReady()
}

// errorReply is the body sent back when a query fails.
type errorReply struct {
	Error string `json:"error"`
}

// HandleMessage implements domain.MessageHandler interface
func (h *AttendanceHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.AttendanceSummaryGetSubject: h.HandleAttendanceSummaryGet,
		models.AttendanceListGetSubject:    h.HandleAttendanceListGet,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		h.respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		body, marshalErr := json.Marshal(errorReply{Error: err.Error()})
		if marshalErr != nil {
			body = nil
		}
		h.respond(ctx, msg, body)
		return
	}

	h.respond(ctx, msg, response)
}

func (h *AttendanceHandler) respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "bytes", len(data))
}

// decodeQuery unmarshals an optional JSON body. An empty body is the zero query.
func decodeQuery(data []byte, into any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return domain.NewValidationError("invalid query body", domain.ErrUnmarshal, err)
	}
	return nil
}

// HandleAttendanceSummaryGet returns the attendance summary of a date range.
func (h *AttendanceHandler) HandleAttendanceSummaryGet(ctx context.Context, msg domain.Message) ([]byte, error) {
	var query models.AttendanceSummaryQuery
	if err := decodeQuery(msg.Data(), &query); err != nil {
		return nil, err
	}

	summary, err := h.attendanceService.GetAttendanceSummary(ctx, query.DateRange)
	if err != nil {
		return nil, err
	}

	return json.Marshal(summary)
}

// HandleAttendanceListGet returns the filtered attendance list, newest first.
func (h *AttendanceHandler) HandleAttendanceListGet(ctx context.Context, msg domain.Message) ([]byte, error) {
	var query models.AttendanceListQuery
	if err := decodeQuery(msg.Data(), &query); err != nil {
		return nil, err
	}

	records, err := h.attendanceService.GetAttendanceList(ctx, query.AttendanceFilter)
	if err != nil {
		return nil, err
	}

	return json.Marshal(records)
}
