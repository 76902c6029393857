// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"testing"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// mockMessage implements the Message interface for testing
type mockMessage struct {
	subject   string
	data      []byte
	responded bool
	reply     bool
}

func (m *mockMessage) Subject() string { return m.subject }
func (m *mockMessage) Data() []byte    { return m.data }
func (m *mockMessage) HasReply() bool  { return m.reply }

func (m *mockMessage) Respond(data []byte) error {
	m.responded = true
	return nil
}

// mockMessageHandler implements the MessageHandler interface for testing
type mockMessageHandler struct {
	handledMessages []Message
}

func (m *mockMessageHandler) HandleMessage(ctx context.Context, msg Message) {
	m.handledMessages = append(m.handledMessages, msg)
}

func (m *mockMessageHandler) HandlerReady() bool { return true }

// mockMessageBuilder implements the MessageBuilder interface for testing
type mockMessageBuilder struct {
	events []models.AttendanceEventMessage
}

func (m *mockMessageBuilder) SendAttendanceEvent(ctx context.Context, action models.MessageAction, collection models.SourceCollection, documentID string, record *models.AttendanceRecord) error {
	m.events = append(m.events, models.AttendanceEventMessage{
		Action:     action,
		Collection: collection,
		DocumentID: documentID,
		Record:     record,
	})
	return nil
}

func TestMessageInterfaces(t *testing.T) {
	var _ Message = (*mockMessage)(nil)
	var _ MessageHandler = (*mockMessageHandler)(nil)
	var _ MessageBuilder = (*mockMessageBuilder)(nil)
}

func TestMessageHandler_HandleMessage(t *testing.T) {
	handler := &mockMessageHandler{}
	msg := &mockMessage{subject: models.AttendanceSummaryGetSubject, data: []byte(`{}`), reply: true}

	handler.HandleMessage(context.Background(), msg)

	if len(handler.handledMessages) != 1 {
		t.Fatalf("expected 1 handled message, got %d", len(handler.handledMessages))
	}
	if handler.handledMessages[0].Subject() != models.AttendanceSummaryGetSubject {
		t.Errorf("unexpected subject %q", handler.handledMessages[0].Subject())
	}
}

func TestMessageBuilder_SendAttendanceEvent(t *testing.T) {
	builder := &mockMessageBuilder{}
	record := &models.AttendanceRecord{ID: "doc-1", Collection: models.CollectionMinistry}

	err := builder.SendAttendanceEvent(context.Background(), models.ActionCreated, models.CollectionMinistry, "doc-1", record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(builder.events) != 1 || builder.events[0].Action != models.ActionCreated {
		t.Errorf("expected one created event, got %+v", builder.events)
	}
}
