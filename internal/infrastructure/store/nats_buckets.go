// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// BucketOptions controls how missing buckets are created.
type BucketOptions struct {
	// Create makes missing buckets instead of failing.
	Create bool
	// History is the number of revisions kept per key.
	History uint8
	// Storage selects file or memory storage for created buckets.
	Storage jetstream.StorageType
}

// OpenBuckets returns the KV bucket of every source collection.
func OpenBuckets(ctx context.Context, js jetstream.JetStream, opts BucketOptions) (map[models.SourceCollection]INatsKeyValue, error) {
	buckets := make(map[models.SourceCollection]INatsKeyValue, len(models.AllCollections()))
	for _, collection := range models.AllCollections() {
		name := BucketName(collection)

		var (
			kv  jetstream.KeyValue
			err error
		)
		if opts.Create {
			history := opts.History
			if history == 0 {
				history = 1
			}
			kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:      name,
				Description: fmt.Sprintf("%s attendance documents", collection),
				History:     history,
				Storage:     opts.Storage,
			})
		} else {
			kv, err = js.KeyValue(ctx, name)
		}
		if err != nil {
			slog.ErrorContext(ctx, "error opening NATS KV bucket", "bucket", name, logging.ErrKey, err)
			return nil, fmt.Errorf("open bucket %s: %w", name, err)
		}

		buckets[collection] = kv
	}
	return buckets, nil
}
