// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// INatsConn is the subset of *nats.Conn the message builder needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// publish sends the message to the NATS server.
func (m *MessageBuilder) publish(ctx context.Context, subject string, data []byte) error {
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// eventSubject returns the subject an attendance action is published on.
func eventSubject(action models.MessageAction) (string, error) {
	switch action {
	case models.ActionCreated:
		return models.AttendanceCreatedSubject, nil
	case models.ActionUpdated:
		return models.AttendanceUpdatedSubject, nil
	case models.ActionDeleted:
		return models.AttendanceDeletedSubject, nil
	default:
		return "", fmt.Errorf("unknown attendance action %q", action)
	}
}

// eventHeaders carries the caller identity of the mutation, when known.
func eventHeaders(ctx context.Context) map[string]string {
	headers := make(map[string]string)
	if requestID, ok := ctx.Value(constants.RequestIDContextID).(string); ok && requestID != "" {
		headers[constants.RequestIDHeader] = requestID
	}
	if principal, ok := ctx.Value(constants.PrincipalContextID).(string); ok && principal != "" {
		headers[constants.XOnBehalfOfHeader] = principal
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// SendAttendanceEvent publishes an attendance mutation. Deletes carry no record.
func (m *MessageBuilder) SendAttendanceEvent(
	ctx context.Context,
	action models.MessageAction,
	collection models.SourceCollection,
	documentID string,
	record *models.AttendanceRecord,
) error {
	subject, err := eventSubject(action)
	if err != nil {
		slog.ErrorContext(ctx, "error resolving attendance event subject", logging.ErrKey, err)
		return err
	}

	message := models.AttendanceEventMessage{
		Action:     action,
		Collection: collection,
		DocumentID: documentID,
		Record:     record,
		Headers:    eventHeaders(ctx),
	}
	if record != nil {
		message.Tags = record.Tags()
	} else {
		message.Tags = []string{documentID, fmt.Sprintf("collection:%s", collection)}
	}

	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling attendance event into JSON", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "constructed attendance event",
		"subject", subject,
		"action", action,
		"tags_count", len(message.Tags),
	)

	return m.publish(ctx, subject, data)
}
