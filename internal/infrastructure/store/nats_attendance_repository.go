// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/concurrent"
)

// listWorkers bounds the concurrent entry reads of a single List call.
const listWorkers = 8

// NatsAttendanceRepository stores each source collection in its own NATS KV bucket.
type NatsAttendanceRepository struct {
	buckets map[models.SourceCollection]*NatsBaseRepository
}

// NewNatsAttendanceRepository creates a repository over the per-collection buckets.
// A collection without a bucket reports the repository as unavailable.
func NewNatsAttendanceRepository(buckets map[models.SourceCollection]INatsKeyValue) *NatsAttendanceRepository {
	repo := &NatsAttendanceRepository{
		buckets: make(map[models.SourceCollection]*NatsBaseRepository, len(buckets)),
	}
	for collection, kv := range buckets {
		if kv == nil {
			continue
		}
		repo.buckets[collection] = NewNatsBaseRepository(kv, fmt.Sprintf("%s attendance", collection))
	}
	return repo
}

// IsReady reports whether every collection has a bucket.
func (r *NatsAttendanceRepository) IsReady() bool {
	for _, collection := range models.AllCollections() {
		if _, ok := r.buckets[collection]; !ok {
			return false
		}
	}
	return true
}

func (r *NatsAttendanceRepository) bucket(collection models.SourceCollection) (*NatsBaseRepository, error) {
	if collection.Order() < 0 {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown attendance collection %q", collection), domain.ErrValidationFailed)
	}
	base, ok := r.buckets[collection]
	if !ok {
		return nil, domain.NewUnavailableError(fmt.Sprintf("%s attendance repository is not available", collection), domain.ErrServiceUnavailable)
	}
	return base, nil
}

// Create implements domain.AttendanceRepository.
func (r *NatsAttendanceRepository) Create(ctx context.Context, document models.SourceDocument) error {
	base, err := r.bucket(document.SourceCollection())
	if err != nil {
		return err
	}
	key, err := DocumentKey(document.DocumentID())
	if err != nil {
		return err
	}
	return base.Create(ctx, key, document)
}

// GetRaw implements domain.AttendanceRepository.
func (r *NatsAttendanceRepository) GetRaw(ctx context.Context, collection models.SourceCollection, documentID string) (*models.RawDocument, error) {
	base, err := r.bucket(collection)
	if err != nil {
		return nil, err
	}
	key, err := DocumentKey(documentID)
	if err != nil {
		return nil, err
	}
	return base.GetDocument(ctx, key)
}

// Patch implements domain.AttendanceRepository.
func (r *NatsAttendanceRepository) Patch(ctx context.Context, collection models.SourceCollection, documentID string, fields map[string]any, revision uint64) error {
	base, err := r.bucket(collection)
	if err != nil {
		return err
	}
	key, err := DocumentKey(documentID)
	if err != nil {
		return err
	}
	return base.Merge(ctx, key, fields, revision)
}

// Delete implements domain.AttendanceRepository.
func (r *NatsAttendanceRepository) Delete(ctx context.Context, collection models.SourceCollection, documentID string) error {
	base, err := r.bucket(collection)
	if err != nil {
		return err
	}
	key, err := DocumentKey(documentID)
	if err != nil {
		// An id that cannot be a key cannot be stored either.
		return domain.NewNotFoundError(fmt.Sprintf("%s attendance not found", collection), domain.ErrAttendanceNotFound, err)
	}
	return base.Delete(ctx, key)
}

// List implements domain.AttendanceRepository. Documents whose meeting date
// is not a string are only returned when the range is open.
func (r *NatsAttendanceRepository) List(ctx context.Context, collection models.SourceCollection, dateRange models.DateRange) ([]*models.RawDocument, error) {
	base, err := r.bucket(collection)
	if err != nil {
		return nil, err
	}

	keys, err := base.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := concurrent.Map(ctx, concurrent.NewWorkerPool(listWorkers), keys,
		func(ctx context.Context, key string) (*models.RawDocument, error) {
			doc, err := base.GetDocument(ctx, key)
			if err != nil {
				if domain.IsNotFound(err) {
					// Deleted between listing and reading.
					return nil, nil
				}
				return nil, err
			}
			return doc, nil
		})
	if err != nil {
		slog.ErrorContext(ctx, "error listing attendance documents",
			"collection", collection, logging.ErrKey, err)
		return nil, err
	}

	open := dateRange.Start == "" && dateRange.End == ""
	result := make([]*models.RawDocument, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if !open {
			date, ok := doc.Fields["meeting_date"].(string)
			if !ok || !dateRange.Contains(date) {
				continue
			}
		}
		result = append(result, doc)
	}
	return result, nil
}
