// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package live keeps attendance views up to date as the source collections
// change. Every view is owned by a single consumer and must be closed by it.
//
// A view processes store notifications on one goroutine: cache writes,
// rebuilds and consumer callbacks all happen there, in order, so callbacks of
// a view never run concurrently with each other.
package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// RecordsHandler receives the filtered, sorted attendance list.
type RecordsHandler func(records []models.AttendanceRecord)

// SummaryHandler receives a freshly computed summary.
type SummaryHandler func(summary models.AttendanceSummary)

// ErrorHandler receives failures of a view. The view keeps running after an
// error; the consumer decides whether to close it.
type ErrorHandler func(err error)

// WatchError reports that the subscription on a collection failed.
type WatchError struct {
	Collection models.SourceCollection
	Err        error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch on %s attendance failed: %v", e.Collection, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// event is a unit of work for the view loop: a batch or a watch failure.
type event struct {
	collection models.SourceCollection
	batch      *models.ChangeBatch
	err        error
}

// subscriptions holds the watches of a view and tears them down once.
type subscriptions struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan event

	mu        sync.Mutex
	cancels   []domain.CancelFunc
	closeOnce sync.Once
}

func newSubscriptions(parent context.Context) *subscriptions {
	ctx, cancel := context.WithCancel(parent)
	return &subscriptions{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan event, 64),
	}
}

// enqueue hands an event to the loop. It gives up once the view is closed so
// a store callback never blocks on a dead view.
func (s *subscriptions) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// open starts one watch per collection. If any watch cannot be opened, the
// ones already opened are cancelled.
func (s *subscriptions) open(watcher domain.AttendanceWatcher) error {
	for _, collection := range models.AllCollections() {
		cancel, err := watcher.Watch(s.ctx, collection,
			func(batch models.ChangeBatch) {
				s.enqueue(event{collection: batch.Collection, batch: &batch})
			},
			func(c models.SourceCollection, err error) {
				s.enqueue(event{collection: c, err: err})
			},
		)
		if err != nil {
			s.close()
			return &WatchError{Collection: collection, Err: err}
		}

		s.mu.Lock()
		closed := s.ctx.Err() != nil
		if !closed {
			s.cancels = append(s.cancels, cancel)
		}
		s.mu.Unlock()
		if closed {
			cancel()
			return s.ctx.Err()
		}
	}
	return nil
}

// close cancels every watch and stops the loop. Only the first call acts.
func (s *subscriptions) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		cancels := s.cancels
		s.cancels = nil
		s.mu.Unlock()

		for _, cancel := range cancels {
			cancel()
		}
	})
}

func (s *subscriptions) closed() bool {
	return s.ctx.Err() != nil
}
