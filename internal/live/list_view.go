// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package live

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/aggregation"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// ListView keeps a filtered, sorted attendance list current across all
// source collections.
//
// It holds one cache per collection, keyed by document id. The first list is
// delivered once every collection has sent its initial snapshot; after that
// every batch from any collection triggers a full rebuild and delivery.
type ListView struct {
	watcher   domain.AttendanceWatcher
	filter    models.AttendanceFilter
	onRecords RecordsHandler
	onError   ErrorHandler

	// Owned by the loop goroutine.
	caches  map[models.SourceCollection]map[string]models.AttendanceRecord
	pending map[models.SourceCollection]bool

	loaded  atomic.Bool
	started atomic.Bool
	subs    *subscriptions
	metrics *viewMetrics
	stopped chan struct{}
}

// NewListView creates a list view. onError may be nil.
func NewListView(watcher domain.AttendanceWatcher, filter models.AttendanceFilter, onRecords RecordsHandler, onError ErrorHandler) *ListView {
	caches := make(map[models.SourceCollection]map[string]models.AttendanceRecord)
	pending := make(map[models.SourceCollection]bool)
	for _, c := range models.AllCollections() {
		caches[c] = make(map[string]models.AttendanceRecord)
		pending[c] = true
	}

	return &ListView{
		watcher:   watcher,
		filter:    filter,
		onRecords: onRecords,
		onError:   onError,
		caches:    caches,
		pending:   pending,
		metrics:   newViewMetrics("list"),
		stopped:   make(chan struct{}),
	}
}

// Start opens the subscriptions. The view runs until Close is called or ctx
// is cancelled.
func (v *ListView) Start(ctx context.Context) error {
	if !v.started.CompareAndSwap(false, true) {
		return errors.New("list view already started")
	}

	ctx = logging.AppendCtx(ctx, slog.String("view", "attendance_list"))
	v.subs = newSubscriptions(ctx)
	go v.run()

	if err := v.subs.open(v.watcher); err != nil {
		slog.ErrorContext(ctx, "failed to open attendance list subscriptions", logging.ErrKey, err)
		return err
	}
	slog.DebugContext(ctx, "attendance list view started")
	return nil
}

// Loaded reports whether every collection has delivered its initial snapshot.
func (v *ListView) Loaded() bool {
	return v.loaded.Load()
}

// Close cancels all subscriptions. It is safe to call more than once and from
// within a callback. A delivery already in progress is allowed to finish.
func (v *ListView) Close() {
	if v.subs != nil {
		v.subs.close()
	}
}

// Done is closed once the view loop has exited.
func (v *ListView) Done() <-chan struct{} {
	return v.stopped
}

func (v *ListView) run() {
	defer close(v.stopped)
	defer v.subs.close()

	ctx := v.subs.ctx
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-v.subs.events:
			if v.subs.closed() {
				return
			}
			v.handle(ctx, ev)
		}
	}
}

func (v *ListView) handle(ctx context.Context, ev event) {
	if ev.err != nil {
		v.metrics.failed(ctx)
		slog.WarnContext(ctx, "attendance watch failed",
			"collection", ev.collection,
			logging.ErrKey, ev.err,
		)
		if v.onError != nil {
			v.onError(&WatchError{Collection: ev.collection, Err: ev.err})
		}
		return
	}

	if !v.apply(ctx, *ev.batch) {
		return
	}

	if !v.loaded.Load() {
		if len(v.pending) > 0 {
			return
		}
		v.loaded.Store(true)
	}
	v.deliver(ctx)
}

// apply writes a batch into its collection cache. It reports false for a
// batch of an unknown collection.
func (v *ListView) apply(ctx context.Context, batch models.ChangeBatch) bool {
	cache, ok := v.caches[batch.Collection]
	if !ok {
		slog.WarnContext(ctx, "ignoring batch for unknown collection", "collection", batch.Collection)
		return false
	}

	if batch.Initial {
		// A snapshot replaces the whole collection, including after a resubscribe.
		clear(cache)
		delete(v.pending, batch.Collection)
	}

	for _, change := range batch.Changes {
		switch change.Op {
		case models.ChangeDelete:
			delete(cache, change.DocumentID)
		case models.ChangePut:
			record, err := aggregation.Decode(batch.Collection, change.DocumentID, change.Raw)
			if err != nil {
				slog.WarnContext(ctx, "attendance document decoded with defaults",
					"collection", batch.Collection,
					"document_id", change.DocumentID,
					logging.ErrKey, err,
				)
			}
			cache[change.DocumentID] = record
		}
	}
	return true
}

func (v *ListView) deliver(ctx context.Context) {
	started := time.Now()

	sets := make([][]models.AttendanceRecord, 0, len(v.caches))
	for _, c := range models.AllCollections() {
		cache := v.caches[c]
		set := make([]models.AttendanceRecord, 0, len(cache))
		for _, record := range cache {
			set = append(set, record)
		}
		sets = append(sets, set)
	}
	records := aggregation.Build(v.filter, sets...)

	v.metrics.rebuilt(ctx, started)
	v.onRecords(records)
}
