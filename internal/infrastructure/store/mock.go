// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// mockKeyValueEntry implements jetstream.KeyValueEntry for testing
type mockKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
	op       jetstream.KeyValueOp
}

func (m *mockKeyValueEntry) Key() string                     { return m.key }
func (m *mockKeyValueEntry) Value() []byte                   { return m.value }
func (m *mockKeyValueEntry) Revision() uint64                { return m.revision }
func (m *mockKeyValueEntry) Created() time.Time              { return time.Now() }
func (m *mockKeyValueEntry) Delta() uint64                   { return 0 }
func (m *mockKeyValueEntry) Operation() jetstream.KeyValueOp { return m.op }
func (m *mockKeyValueEntry) Bucket() string                  { return "test-bucket" }

// mockKeyLister implements jetstream.KeyLister for testing
type mockKeyLister struct {
	keys []string
}

func (m *mockKeyLister) Keys() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, key := range m.keys {
			ch <- key
		}
	}()
	return ch
}

func (m *mockKeyLister) Stop() error { return nil }

// mockKeyWatcher implements jetstream.KeyWatcher for testing
type mockKeyWatcher struct {
	updates   chan jetstream.KeyValueEntry
	stopOnce  sync.Once
	stopped   chan struct{}
	closeOnce sync.Once
}

func (m *mockKeyWatcher) Updates() <-chan jetstream.KeyValueEntry { return m.updates }

func (m *mockKeyWatcher) Stop() error {
	m.stopOnce.Do(func() { close(m.stopped) })
	return nil
}

// closeUpdates ends the watch as the server would.
func (m *mockKeyWatcher) closeUpdates() {
	m.closeOnce.Do(func() { close(m.updates) })
}

func (m *mockKeyWatcher) send(entry jetstream.KeyValueEntry) {
	select {
	case m.updates <- entry:
	case <-m.stopped:
	}
}

// mockNatsKeyValue implements INatsKeyValue for testing. Deleted keys keep a
// tombstone revision like a real bucket.
type mockNatsKeyValue struct {
	mu          sync.Mutex
	data        map[string][]byte
	revisions   map[string]uint64
	deleted     map[string]bool
	sequence    uint64
	watchers    []*mockKeyWatcher
	createError error
	getError    error
	deleteError error
	updateError error
	listError   error
	watchError  error
}

func newMockNatsKeyValue() *mockNatsKeyValue {
	return &mockNatsKeyValue{
		data:      make(map[string][]byte),
		revisions: make(map[string]uint64),
		deleted:   make(map[string]bool),
	}
}

// put stores a value directly, bypassing revision checks, and notifies watchers.
func (m *mockNatsKeyValue) put(key string, data []byte) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(key, data, jetstream.KeyValuePut)
}

// store must be called with mu held.
func (m *mockNatsKeyValue) store(key string, data []byte, op jetstream.KeyValueOp) uint64 {
	m.sequence++
	m.revisions[key] = m.sequence
	if op == jetstream.KeyValuePut {
		m.data[key] = data
		delete(m.deleted, key)
	} else {
		delete(m.data, key)
		m.deleted[key] = true
	}
	entry := &mockKeyValueEntry{key: key, value: data, revision: m.sequence, op: op}
	for _, w := range m.watchers {
		w.send(entry)
	}
	return m.sequence
}

func (m *mockNatsKeyValue) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &mockKeyLister{keys: keys}, nil
}

func (m *mockNatsKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	value, exists := m.data[key]
	if !exists {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockKeyValueEntry{key: key, value: value, revision: m.revisions[key], op: jetstream.KeyValuePut}, nil
}

func (m *mockNatsKeyValue) Create(ctx context.Context, key string, data []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return 0, m.createError
	}
	if _, exists := m.data[key]; exists {
		return 0, jetstream.ErrKeyExists
	}
	return m.store(key, data, jetstream.KeyValuePut), nil
}

func (m *mockNatsKeyValue) Update(ctx context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return 0, m.updateError
	}
	currentRevision, exists := m.revisions[key]
	if !exists {
		return 0, jetstream.ErrKeyNotFound
	}
	if currentRevision != expectedRevision {
		return 0, errors.New("nats: wrong last sequence: 3")
	}
	return m.store(key, data, jetstream.KeyValuePut), nil
}

func (m *mockNatsKeyValue) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return m.deleteError
	}
	// A real bucket accepts deletes of missing keys and writes a marker.
	m.store(key, nil, jetstream.KeyValueDelete)
	return nil
}

func (m *mockNatsKeyValue) WatchAll(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchError != nil {
		return nil, m.watchError
	}

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := &mockKeyWatcher{
		updates: make(chan jetstream.KeyValueEntry, len(keys)+64),
		stopped: make(chan struct{}),
	}
	for _, key := range keys {
		w.updates <- &mockKeyValueEntry{key: key, value: m.data[key], revision: m.revisions[key], op: jetstream.KeyValuePut}
	}
	w.updates <- nil
	m.watchers = append(m.watchers, w)
	return w, nil
}

// lastWatcher returns the most recently opened watch.
func (m *mockNatsKeyValue) lastWatcher() *mockKeyWatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.watchers) == 0 {
		return nil
	}
	return m.watchers[len(m.watchers)-1]
}
