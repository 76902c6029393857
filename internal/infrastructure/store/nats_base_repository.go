// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// NATS Key-Value store bucket names, one per source collection.
const (
	KVStoreNameMinistryAttendance  = "ministry-attendance"
	KVStoreNameServiceAttendance   = "service-attendance"
	KVStoreNameCellGroupAttendance = "cell-group-attendance"
)

// BucketName returns the KV bucket that stores the collection.
func BucketName(collection models.SourceCollection) string {
	switch collection {
	case models.CollectionMinistry:
		return KVStoreNameMinistryAttendance
	case models.CollectionCellGroup:
		return KVStoreNameCellGroupAttendance
	case models.CollectionService:
		return KVStoreNameServiceAttendance
	default:
		return ""
	}
}

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"

// INatsKeyValue is the subset of jetstream.KeyValue the attendance store needs.
// It allows for mocking in tests.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
	WatchAll(context.Context, ...jetstream.WatchOpt) (jetstream.KeyWatcher, error)
}

// NatsBaseRepository provides the KV operations of a single bucket on
// untyped JSON documents.
type NatsBaseRepository struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "ministry attendance")
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository(kvStore INatsKeyValue, entityName string) *NatsBaseRepository {
	return &NatsBaseRepository{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository) startSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", operation),
		attribute.String("db.nats.entity", r.entityName),
	}, attrs...)
	if key != "" {
		attrs = append(attrs, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func fail(span trace.Span, status string, err error) error {
	span.RecordError(err)
	if status == "" {
		status = err.Error()
	}
	span.SetStatus(codes.Error, status)
	return err
}

func (r *NatsBaseRepository) unavailable(span trace.Span) error {
	return fail(span, "", domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName), domain.ErrServiceUnavailable))
}

func isWrongSequence(err error) bool {
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}

// GetEntry retrieves a raw entry from NATS KV store
func (r *NatsBaseRepository) GetEntry(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, r.unavailable(span)
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fail(span, "not found", domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), domain.ErrAttendanceNotFound, err))
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, fail(span, "", domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err))
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// GetDocument retrieves an entry and decodes it into an untyped document.
// A value that is not a JSON object yields a document with no fields.
func (r *NatsBaseRepository) GetDocument(ctx context.Context, key string) (*models.RawDocument, error) {
	entry, err := r.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.document(ctx, entry), nil
}

func (r *NatsBaseRepository) document(ctx context.Context, entry jetstream.KeyValueEntry) *models.RawDocument {
	fields, err := unmarshalFields(entry.Value())
	if err != nil {
		slog.WarnContext(ctx, fmt.Sprintf("stored %s is not a JSON object", r.entityName),
			logging.ErrKey, err, "key", entry.Key())
	}
	return &models.RawDocument{
		ID:       entry.Key(),
		Fields:   fields,
		Revision: entry.Revision(),
	}
}

// unmarshalFields decodes a stored value into a JSON object. Numbers decode
// as float64 like encoding/json does.
func unmarshalFields(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Create stores a new value. It fails with a conflict if the key already exists.
func (r *NatsBaseRepository) Create(ctx context.Context, key string, value any) error {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return r.unavailable(span)
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error marshaling %s", r.entityName), logging.ErrKey, err)
		return fail(span, "", domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err))
	}

	if _, err := r.kvStore.Create(ctx, key, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fail(span, "conflict", domain.NewConflictError(
				fmt.Sprintf("%s with key '%s' already exists", r.entityName, key), err))
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error creating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return fail(span, "", domain.NewInternalError(fmt.Sprintf("failed to create %s in store", r.entityName), err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Merge writes fields over the stored JSON object with optimistic
// concurrency control. Fields absent from the patch are preserved.
func (r *NatsBaseRepository) Merge(ctx context.Context, key string, fields map[string]any, revision uint64) error {
	entry, err := r.GetEntry(ctx, key)
	if err != nil {
		return err
	}

	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if entry.Revision() != revision {
		return fail(span, "conflict", domain.NewConflictError(
			fmt.Sprintf("%s has been modified", r.entityName), domain.ErrRevisionMismatch))
	}

	stored, err := unmarshalFields(entry.Value())
	if err != nil || stored == nil {
		stored = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		stored[k] = v
	}

	data, err := json.Marshal(stored)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error marshaling %s", r.entityName), logging.ErrKey, err)
		return fail(span, "", domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err))
	}

	if _, err := r.kvStore.Update(ctx, key, data, revision); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, "not found", domain.NewNotFoundError(
				fmt.Sprintf("%s not found", r.entityName), domain.ErrAttendanceNotFound, err))
		}
		if isWrongSequence(err) {
			return fail(span, "conflict", domain.NewConflictError(
				fmt.Sprintf("%s has been modified", r.entityName), domain.ErrRevisionMismatch, err))
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error updating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return fail(span, "", domain.NewInternalError(fmt.Sprintf("failed to update %s in store", r.entityName), err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes an existing key. A key that is absent or already deleted
// yields a not-found error, which a bare KV delete would not report.
func (r *NatsBaseRepository) Delete(ctx context.Context, key string) error {
	entry, err := r.GetEntry(ctx, key)
	if err != nil {
		return err
	}

	ctx, span := r.startSpan(ctx, "delete", key, attribute.Int64("db.nats.revision", int64(entry.Revision())))
	defer span.End()

	if err := r.kvStore.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, "not found", domain.NewNotFoundError(
				fmt.Sprintf("%s not found", r.entityName), domain.ErrAttendanceNotFound, err))
		}
		if isWrongSequence(err) {
			return fail(span, "conflict", domain.NewConflictError(
				fmt.Sprintf("%s has been modified", r.entityName), domain.ErrRevisionMismatch, err))
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return fail(span, "", domain.NewInternalError(fmt.Sprintf("failed to delete %s from store", r.entityName), err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListKeys lists all live keys in the bucket.
func (r *NatsBaseRepository) ListKeys(ctx context.Context) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "")
	defer span.End()

	if !r.IsReady() {
		return nil, r.unavailable(span)
	}

	lister, err := r.kvStore.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			span.SetStatus(codes.Ok, "")
			return []string{}, nil
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err)
		return nil, fail(span, "", domain.NewInternalError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err))
	}
	defer func() { _ = lister.Stop() }()

	keys := []string{}
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// Watch opens a watch on every key of the bucket.
func (r *NatsBaseRepository) Watch(ctx context.Context) (jetstream.KeyWatcher, error) {
	ctx, span := r.startSpan(ctx, "watch", "")
	defer span.End()

	if !r.IsReady() {
		return nil, r.unavailable(span)
	}

	watcher, err := r.kvStore.WatchAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error watching %s in NATS KV", r.entityName), logging.ErrKey, err)
		return nil, fail(span, "", domain.NewUnavailableError(
			fmt.Sprintf("failed to watch %s", r.entityName), err))
	}

	span.SetStatus(codes.Ok, "")
	return watcher, nil
}
