// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MockAttendanceRepository implements AttendanceRepository for testing
type MockAttendanceRepository struct {
	mock.Mock
}

func (m *MockAttendanceRepository) Create(ctx context.Context, document models.SourceDocument) error {
	args := m.Called(ctx, document)
	return args.Error(0)
}

func (m *MockAttendanceRepository) GetRaw(ctx context.Context, collection models.SourceCollection, documentID string) (*models.RawDocument, error) {
	args := m.Called(ctx, collection, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawDocument), args.Error(1)
}

func (m *MockAttendanceRepository) Patch(ctx context.Context, collection models.SourceCollection, documentID string, fields map[string]any, revision uint64) error {
	args := m.Called(ctx, collection, documentID, fields, revision)
	return args.Error(0)
}

func (m *MockAttendanceRepository) Delete(ctx context.Context, collection models.SourceCollection, documentID string) error {
	args := m.Called(ctx, collection, documentID)
	return args.Error(0)
}

func (m *MockAttendanceRepository) List(ctx context.Context, collection models.SourceCollection, dateRange models.DateRange) ([]*models.RawDocument, error) {
	args := m.Called(ctx, collection, dateRange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RawDocument), args.Error(1)
}
