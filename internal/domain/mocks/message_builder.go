// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MockMessageBuilder implements MessageBuilder for testing
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) SendAttendanceEvent(ctx context.Context, action models.MessageAction, collection models.SourceCollection, documentID string, record *models.AttendanceRecord) error {
	args := m.Called(ctx, action, collection, documentID, record)
	return args.Error(0)
}
