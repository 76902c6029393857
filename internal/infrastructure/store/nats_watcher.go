// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// ErrWatchClosed is reported when the server ends a watch the caller did not cancel.
var ErrWatchClosed = errors.New("attendance watch closed by server")

// NatsAttendanceWatcher turns KV bucket watches into change batches.
type NatsAttendanceWatcher struct {
	buckets map[models.SourceCollection]*NatsBaseRepository
}

// NewNatsAttendanceWatcher creates a watcher over the per-collection buckets.
func NewNatsAttendanceWatcher(buckets map[models.SourceCollection]INatsKeyValue) *NatsAttendanceWatcher {
	w := &NatsAttendanceWatcher{
		buckets: make(map[models.SourceCollection]*NatsBaseRepository, len(buckets)),
	}
	for collection, kv := range buckets {
		if kv == nil {
			continue
		}
		w.buckets[collection] = NewNatsBaseRepository(kv, fmt.Sprintf("%s attendance", collection))
	}
	return w
}

// Watch implements domain.AttendanceWatcher. The KV watch replays the bucket
// and then marks the end of the replay with a nil entry; everything before
// the marker is delivered as one initial batch.
func (w *NatsAttendanceWatcher) Watch(
	ctx context.Context,
	collection models.SourceCollection,
	onChange domain.ChangeHandler,
	onError domain.ErrorHandler,
) (domain.CancelFunc, error) {
	base, ok := w.buckets[collection]
	if !ok {
		return nil, domain.NewUnavailableError(fmt.Sprintf("no bucket for %s attendance", collection), domain.ErrServiceUnavailable)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	kw, err := base.Watch(watchCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	go w.run(watchCtx, collection, kw, onChange, onError)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := kw.Stop(); err != nil {
				slog.DebugContext(ctx, "error stopping attendance watch", "collection", collection, logging.ErrKey, err)
			}
		})
	}, nil
}

func (w *NatsAttendanceWatcher) run(
	ctx context.Context,
	collection models.SourceCollection,
	kw jetstream.KeyWatcher,
	onChange domain.ChangeHandler,
	onError domain.ErrorHandler,
) {
	initial := true
	snapshot := models.ChangeBatch{Collection: collection, Initial: true, Changes: []models.DocumentChange{}}

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-kw.Updates():
			if !ok {
				if ctx.Err() == nil && onError != nil {
					onError(collection, ErrWatchClosed)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			if entry == nil {
				if initial {
					initial = false
					onChange(snapshot)
				}
				continue
			}

			change := toChange(ctx, collection, entry)
			if initial {
				snapshot.Changes = append(snapshot.Changes, change)
				continue
			}
			onChange(models.ChangeBatch{Collection: collection, Changes: []models.DocumentChange{change}})
		}
	}
}

func toChange(ctx context.Context, collection models.SourceCollection, entry jetstream.KeyValueEntry) models.DocumentChange {
	change := models.DocumentChange{
		DocumentID: entry.Key(),
		Revision:   entry.Revision(),
	}

	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		change.Op = models.ChangeDelete
	default:
		change.Op = models.ChangePut
		fields, err := unmarshalFields(entry.Value())
		if err != nil {
			slog.WarnContext(ctx, "watched attendance value is not a JSON object",
				"collection", collection, "key", entry.Key(), logging.ErrKey, err)
		}
		change.Raw = fields
	}
	return change
}
