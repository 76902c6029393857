// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

const waitTimeout = 2 * time.Second

func put(id string, raw map[string]any) models.DocumentChange {
	return models.DocumentChange{Op: models.ChangePut, DocumentID: id, Raw: raw}
}

func remove(id string) models.DocumentChange {
	return models.DocumentChange{Op: models.ChangeDelete, DocumentID: id}
}

func snapshot(collection models.SourceCollection, changes ...models.DocumentChange) models.ChangeBatch {
	return models.ChangeBatch{Collection: collection, Initial: true, Changes: changes}
}

func delta(collection models.SourceCollection, changes ...models.DocumentChange) models.ChangeBatch {
	return models.ChangeBatch{Collection: collection, Changes: changes}
}

func attendance(date string, attended, missed int) map[string]any {
	attendees := make([]any, 0, attended+missed)
	for i := 0; i < attended; i++ {
		attendees = append(attendees, map[string]any{"member_id": "p", "attended": true})
	}
	for i := 0; i < missed; i++ {
		attendees = append(attendees, map[string]any{"member_id": "a", "attended": false})
	}
	return map[string]any{"meeting_date": date, "attendees": attendees}
}

func with(raw map[string]any, key string, value any) map[string]any {
	raw[key] = value
	return raw
}

type listRecorder struct {
	lists  chan []models.AttendanceRecord
	errors chan error
}

func newListRecorder() *listRecorder {
	return &listRecorder{
		lists:  make(chan []models.AttendanceRecord, 100),
		errors: make(chan error, 100),
	}
}

func (r *listRecorder) onRecords(records []models.AttendanceRecord) { r.lists <- records }

func (r *listRecorder) onError(err error) { r.errors <- err }

func (r *listRecorder) next(t *testing.T) []models.AttendanceRecord {
	t.Helper()
	select {
	case records := <-r.lists:
		return records
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for attendance list")
		return nil
	}
}

func (r *listRecorder) nextError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errors:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for view error")
		return nil
	}
}

func (r *listRecorder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case records := <-r.lists:
		t.Fatalf("unexpected delivery of %d records", len(records))
	case <-time.After(50 * time.Millisecond):
	}
}

func ids(records []models.AttendanceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key())
	}
	return out
}

func startListView(t *testing.T, filter models.AttendanceFilter) (*ListView, *mocks.FakeAttendanceWatcher, *listRecorder) {
	t.Helper()
	watcher := mocks.NewFakeAttendanceWatcher()
	recorder := newListRecorder()
	view := NewListView(watcher, filter, recorder.onRecords, recorder.onError)
	require.NoError(t, view.Start(context.Background()))
	t.Cleanup(view.Close)
	return view, watcher, recorder
}

func TestListView_WaitsForEverySnapshot(t *testing.T) {
	view, watcher, recorder := startListView(t, models.AttendanceFilter{})

	for _, c := range models.AllCollections() {
		assert.True(t, watcher.Watching(c))
	}

	watcher.Push(snapshot(models.CollectionMinistry, put("m1", attendance("2024-05-05", 8, 2))))
	watcher.Push(snapshot(models.CollectionService))
	recorder.assertQuiet(t)
	assert.False(t, view.Loaded())

	watcher.Push(snapshot(models.CollectionCellGroup, put("c1", attendance("2024-05-06", 1, 0))))

	records := recorder.next(t)
	assert.Equal(t, []string{"cell_group/c1", "ministry/m1"}, ids(records))
	assert.True(t, view.Loaded())
}

func TestListView_AppliesChanges(t *testing.T) {
	_, watcher, recorder := startListView(t, models.AttendanceFilter{})

	watcher.Push(snapshot(models.CollectionMinistry,
		put("m1", with(attendance("2024-05-05", 8, 2), "ministry_name", "Youth")),
		put("m2", attendance("2024-04-01", 1, 1)),
	))
	watcher.Push(snapshot(models.CollectionService))
	watcher.Push(snapshot(models.CollectionCellGroup))
	require.Len(t, recorder.next(t), 2)

	t.Run("put replaces the entry", func(t *testing.T) {
		watcher.Push(delta(models.CollectionMinistry, put("m1", with(attendance("2024-05-05", 10, 0), "ministry_name", "Youth"))))

		records := recorder.next(t)
		require.Len(t, records, 2)
		assert.Equal(t, "ministry/m1", records[0].Key())
		assert.Equal(t, 10, records[0].TotalAttended)
		assert.Equal(t, 100, records[0].AttendanceRate)
	})

	t.Run("put adds a new entry", func(t *testing.T) {
		watcher.Push(delta(models.CollectionService, put("s1", attendance("2024-06-01", 50, 0))))

		records := recorder.next(t)
		assert.Equal(t, []string{"service/s1", "ministry/m1", "ministry/m2"}, ids(records))
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		watcher.Push(delta(models.CollectionMinistry, remove("m1")))

		records := recorder.next(t)
		assert.Equal(t, []string{"service/s1", "ministry/m2"}, ids(records))
	})

	t.Run("delete of an unknown document still rebuilds", func(t *testing.T) {
		watcher.Push(delta(models.CollectionCellGroup, remove("missing")))

		records := recorder.next(t)
		assert.Equal(t, []string{"service/s1", "ministry/m2"}, ids(records))
	})

	t.Run("same id in two collections stays two records", func(t *testing.T) {
		watcher.Push(delta(models.CollectionCellGroup, put("m2", attendance("2024-04-01", 1, 0))))

		records := recorder.next(t)
		assert.Equal(t, []string{"service/s1", "ministry/m2", "cell_group/m2"}, ids(records))
	})
}

func TestListView_AppliesFilter(t *testing.T) {
	_, watcher, recorder := startListView(t, models.AttendanceFilter{
		EntityType: models.EntityTypeMinistry,
		DateRange:  models.DateRange{Start: "2024-05-01"},
	})

	watcher.Push(snapshot(models.CollectionMinistry,
		put("m1", attendance("2024-05-05", 1, 0)),
		put("m2", attendance("2024-04-05", 1, 0)),
	))
	watcher.Push(snapshot(models.CollectionService, put("s1", attendance("2024-05-05", 1, 0))))
	watcher.Push(snapshot(models.CollectionCellGroup, put("c1", attendance("2024-05-05", 1, 0))))

	assert.Equal(t, []string{"ministry/m1"}, ids(recorder.next(t)))
}

func TestListView_ResnapshotReplacesCache(t *testing.T) {
	_, watcher, recorder := startListView(t, models.AttendanceFilter{})

	watcher.Push(snapshot(models.CollectionMinistry, put("m1", attendance("2024-05-05", 1, 0))))
	watcher.Push(snapshot(models.CollectionService))
	watcher.Push(snapshot(models.CollectionCellGroup))
	require.Len(t, recorder.next(t), 1)

	watcher.Push(snapshot(models.CollectionMinistry, put("m2", attendance("2024-05-06", 1, 0))))

	assert.Equal(t, []string{"ministry/m2"}, ids(recorder.next(t)))
}

func TestListView_MalformedDocumentIsKept(t *testing.T) {
	_, watcher, recorder := startListView(t, models.AttendanceFilter{})

	watcher.Push(snapshot(models.CollectionMinistry, put("m1", map[string]any{
		"meeting_date":  "2024-05-05",
		"total_members": "many",
		"attendees":     "nobody",
	})))
	watcher.Push(snapshot(models.CollectionService))
	watcher.Push(snapshot(models.CollectionCellGroup))

	records := recorder.next(t)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].TotalMembers)
	assert.Equal(t, 0, records[0].AttendanceRate)
}

func TestListView_ReportsWatchErrors(t *testing.T) {
	_, watcher, recorder := startListView(t, models.AttendanceFilter{})

	storeErr := errors.New("stream unavailable")
	require.True(t, watcher.PushError(models.CollectionService, storeErr))

	err := recorder.nextError(t)
	var watchErr *WatchError
	require.ErrorAs(t, err, &watchErr)
	assert.Equal(t, models.CollectionService, watchErr.Collection)
	assert.ErrorIs(t, err, storeErr)
}

func TestListView_Close(t *testing.T) {
	view, watcher, recorder := startListView(t, models.AttendanceFilter{})

	view.Close()
	view.Close()

	select {
	case <-view.Done():
	case <-time.After(waitTimeout):
		t.Fatal("view loop did not stop")
	}

	for _, c := range models.AllCollections() {
		assert.Equal(t, 1, watcher.Cancelled(c))
		assert.False(t, watcher.Push(snapshot(c)))
	}
	recorder.assertQuiet(t)
}

func TestListView_CloseFromCallback(t *testing.T) {
	watcher := mocks.NewFakeAttendanceWatcher()
	var view *ListView
	delivered := make(chan struct{})
	view = NewListView(watcher, models.AttendanceFilter{}, func([]models.AttendanceRecord) {
		view.Close()
		close(delivered)
	}, nil)
	require.NoError(t, view.Start(context.Background()))

	for _, c := range models.AllCollections() {
		watcher.Push(snapshot(c))
	}

	select {
	case <-delivered:
	case <-time.After(waitTimeout):
		t.Fatal("no delivery")
	}
	select {
	case <-view.Done():
	case <-time.After(waitTimeout):
		t.Fatal("view loop did not stop")
	}
	assert.Equal(t, 1, watcher.Cancelled(models.CollectionMinistry))
}

func TestListView_ContextCancellationCloses(t *testing.T) {
	watcher := mocks.NewFakeAttendanceWatcher()
	view := NewListView(watcher, models.AttendanceFilter{}, func([]models.AttendanceRecord) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, view.Start(ctx))
	cancel()

	select {
	case <-view.Done():
	case <-time.After(waitTimeout):
		t.Fatal("view loop did not stop")
	}
	for _, c := range models.AllCollections() {
		assert.Equal(t, 1, watcher.Cancelled(c))
	}
}

func TestListView_StartFailure(t *testing.T) {
	watcher := mocks.NewFakeAttendanceWatcher()
	storeErr := errors.New("bucket not found")
	watcher.FailWatch(models.CollectionService, storeErr)

	view := NewListView(watcher, models.AttendanceFilter{}, func([]models.AttendanceRecord) {}, nil)
	err := view.Start(context.Background())

	var watchErr *WatchError
	require.ErrorAs(t, err, &watchErr)
	assert.Equal(t, models.CollectionService, watchErr.Collection)
	assert.ErrorIs(t, err, storeErr)

	assert.Equal(t, 1, watcher.Cancelled(models.CollectionMinistry))
	assert.False(t, watcher.Watching(models.CollectionCellGroup))

	select {
	case <-view.Done():
	case <-time.After(waitTimeout):
		t.Fatal("view loop did not stop")
	}
}

func TestListView_StartTwice(t *testing.T) {
	view, _, _ := startListView(t, models.AttendanceFilter{})
	assert.Error(t, view.Start(context.Background()))
}
