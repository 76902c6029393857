// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// AttendanceEventSender publishes attendance mutations to other services.
type AttendanceEventSender interface {
	SendAttendanceEvent(ctx context.Context, action models.MessageAction, collection models.SourceCollection, documentID string, record *models.AttendanceRecord) error
}

// MessageBuilder is the interface for the message builder.
type MessageBuilder interface {
	AttendanceEventSender
}
