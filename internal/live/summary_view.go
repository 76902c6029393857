// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/aggregation"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/concurrent"
)

// FetchError reports that a summary could not be recomputed.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch attendance for summary: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SummaryView keeps an attendance summary current. It does not cache records:
// it computes once on start and then refetches every collection and
// recomputes in full whenever any collection changes.
type SummaryView struct {
	repo      domain.AttendanceRepository
	watcher   domain.AttendanceWatcher
	pool      *concurrent.WorkerPool
	dates     models.DateRange
	onSummary SummaryHandler
	onError   ErrorHandler

	started atomic.Bool
	subs    *subscriptions
	metrics *viewMetrics
	stopped chan struct{}
}

// NewSummaryView creates a summary view over the date range. onError may be nil.
func NewSummaryView(
	repo domain.AttendanceRepository,
	watcher domain.AttendanceWatcher,
	pool *concurrent.WorkerPool,
	dates models.DateRange,
	onSummary SummaryHandler,
	onError ErrorHandler,
) *SummaryView {
	if pool == nil {
		pool = concurrent.NewWorkerPool(len(models.AllCollections()))
	}
	return &SummaryView{
		repo:      repo,
		watcher:   watcher,
		pool:      pool,
		dates:     dates,
		onSummary: onSummary,
		onError:   onError,
		metrics:   newViewMetrics("summary"),
		stopped:   make(chan struct{}),
	}
}

// Start opens the subscriptions and schedules the initial computation.
func (v *SummaryView) Start(ctx context.Context) error {
	if !v.started.CompareAndSwap(false, true) {
		return errors.New("summary view already started")
	}

	ctx = logging.AppendCtx(ctx, slog.String("view", "attendance_summary"))
	v.subs = newSubscriptions(ctx)
	go v.run()

	if err := v.subs.open(v.watcher); err != nil {
		slog.ErrorContext(ctx, "failed to open attendance summary subscriptions", logging.ErrKey, err)
		return err
	}
	return nil
}

// Close cancels all subscriptions and any fetch in flight. It is safe to call
// more than once and from within a callback.
func (v *SummaryView) Close() {
	if v.subs != nil {
		v.subs.close()
	}
}

// Done is closed once the view loop has exited.
func (v *SummaryView) Done() <-chan struct{} {
	return v.stopped
}

func (v *SummaryView) run() {
	defer close(v.stopped)
	defer v.subs.close()

	ctx := v.subs.ctx
	v.recompute(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-v.subs.events:
			changed := v.drain(ctx, ev)
			if v.subs.closed() {
				return
			}
			if changed {
				v.recompute(ctx)
			}
		}
	}
}

// drain handles ev and every event already queued behind it, reporting
// whether any of them was a change. Changes that arrive together are covered
// by a single recomputation since it is a full refetch anyway.
func (v *SummaryView) drain(ctx context.Context, ev event) bool {
	changed := false
	for {
		if ev.err != nil {
			v.reportError(ctx, &WatchError{Collection: ev.collection, Err: ev.err})
		} else {
			changed = true
		}

		select {
		case ev = <-v.subs.events:
		default:
			return changed
		}
	}
}

func (v *SummaryView) recompute(ctx context.Context) {
	started := time.Now()

	sets, err := concurrent.Map(ctx, v.pool, models.AllCollections(), v.fetch)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.reportError(ctx, &FetchError{Err: err})
		return
	}

	summary := aggregation.SummarizeRange(v.dates, sets...)
	v.metrics.rebuilt(ctx, started)
	if v.subs.closed() {
		return
	}
	v.onSummary(summary)
}

func (v *SummaryView) fetch(ctx context.Context, collection models.SourceCollection) ([]models.AttendanceRecord, error) {
	docs, err := v.repo.List(ctx, collection, v.dates)
	if err != nil {
		return nil, err
	}

	records := make([]models.AttendanceRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := aggregation.DecodeRaw(collection, doc)
		if err != nil {
			slog.WarnContext(ctx, "attendance document decoded with defaults",
				"collection", collection,
				"document_id", doc.ID,
				logging.ErrKey, err,
			)
		}
		records = append(records, record)
	}
	return records, nil
}

func (v *SummaryView) reportError(ctx context.Context, err error) {
	v.metrics.failed(ctx)
	slog.WarnContext(ctx, "attendance summary view error", logging.ErrKey, err)
	if v.onError != nil {
		v.onError(err)
	}
}
