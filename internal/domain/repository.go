// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// AttendanceRepository defines the storage operations on the attendance source collections.
// This interface can be implemented by different storage backends (NATS, Firestore, etc.)
type AttendanceRepository interface {
	// Create persists a new source document in its collection.
	Create(ctx context.Context, document models.SourceDocument) error
	// GetRaw returns the stored fields of a document and its revision.
	GetRaw(ctx context.Context, collection models.SourceCollection, documentID string) (*models.RawDocument, error)
	// Patch merges the given fields into the stored document. The write only
	// succeeds if the document is still at the given revision.
	Patch(ctx context.Context, collection models.SourceCollection, documentID string, fields map[string]any, revision uint64) error
	// Delete removes a document. A missing document yields a NotFound domain error.
	Delete(ctx context.Context, collection models.SourceCollection, documentID string) error
	// List returns every document of the collection whose meeting date falls in the range.
	List(ctx context.Context, collection models.SourceCollection, dateRange models.DateRange) ([]*models.RawDocument, error)
}

// ChangeHandler receives store notifications for a watched collection.
type ChangeHandler func(batch models.ChangeBatch)

// ErrorHandler receives failures of a running watch.
type ErrorHandler func(collection models.SourceCollection, err error)

// CancelFunc stops a watch. It is safe to call more than once.
type CancelFunc func()

// AttendanceWatcher opens live subscriptions on a source collection. The first
// batch delivered is the full current snapshot, followed by one batch per change.
type AttendanceWatcher interface {
	Watch(ctx context.Context, collection models.SourceCollection, onChange ChangeHandler, onError ErrorHandler) (CancelFunc, error)
}
