// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"sync"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// FakeAttendanceWatcher implements AttendanceWatcher for testing. Tests push
// batches and errors into open watches by collection.
type FakeAttendanceWatcher struct {
	mu        sync.Mutex
	handlers  map[models.SourceCollection]domain.ChangeHandler
	errors    map[models.SourceCollection]domain.ErrorHandler
	cancelled map[models.SourceCollection]int
	watchErr  map[models.SourceCollection]error
}

// NewFakeAttendanceWatcher creates an empty fake watcher.
func NewFakeAttendanceWatcher() *FakeAttendanceWatcher {
	return &FakeAttendanceWatcher{
		handlers:  make(map[models.SourceCollection]domain.ChangeHandler),
		errors:    make(map[models.SourceCollection]domain.ErrorHandler),
		cancelled: make(map[models.SourceCollection]int),
		watchErr:  make(map[models.SourceCollection]error),
	}
}

// FailWatch makes the next Watch call on the collection return err.
func (w *FakeAttendanceWatcher) FailWatch(collection models.SourceCollection, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchErr[collection] = err
}

// Watch implements domain.AttendanceWatcher.
func (w *FakeAttendanceWatcher) Watch(_ context.Context, collection models.SourceCollection, onChange domain.ChangeHandler, onError domain.ErrorHandler) (domain.CancelFunc, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.watchErr[collection]; err != nil {
		delete(w.watchErr, collection)
		return nil, err
	}

	w.handlers[collection] = onChange
	w.errors[collection] = onError

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.handlers, collection)
			delete(w.errors, collection)
			w.cancelled[collection]++
		})
	}, nil
}

// Push delivers a batch to the watch open on the batch's collection.
// It reports false when nothing is watching that collection.
func (w *FakeAttendanceWatcher) Push(batch models.ChangeBatch) bool {
	w.mu.Lock()
	handler, ok := w.handlers[batch.Collection]
	w.mu.Unlock()

	if !ok {
		return false
	}
	handler(batch)
	return true
}

// PushError delivers a watch failure to the watch open on the collection.
func (w *FakeAttendanceWatcher) PushError(collection models.SourceCollection, err error) bool {
	w.mu.Lock()
	handler, ok := w.errors[collection]
	w.mu.Unlock()

	if !ok || handler == nil {
		return false
	}
	handler(collection, err)
	return true
}

// Watching reports whether a watch is currently open on the collection.
func (w *FakeAttendanceWatcher) Watching(collection models.SourceCollection) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.handlers[collection]
	return ok
}

// Cancelled returns how many times a watch on the collection was cancelled.
func (w *FakeAttendanceWatcher) Cancelled(collection models.SourceCollection) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled[collection]
}
