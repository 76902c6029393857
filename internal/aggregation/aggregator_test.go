// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

func record(collection models.SourceCollection, id, entityID string, entityType models.EntityType, date string) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:          id,
		Collection:  collection,
		EntityID:    entityID,
		EntityType:  entityType,
		MeetingDate: date,
		Attendees:   []models.Attendee{},
	}
}

func dates(records []models.AttendanceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.MeetingDate)
	}
	return out
}

func keys(records []models.AttendanceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key())
	}
	return out
}

func TestMerge(t *testing.T) {
	a := []models.AttendanceRecord{record(models.CollectionMinistry, "1", "m", models.EntityTypeMinistry, "2024-01-01")}
	b := []models.AttendanceRecord{
		record(models.CollectionService, "1", "s", models.EntityTypeService, "2024-01-02"),
		record(models.CollectionService, "2", "s", models.EntityTypeService, "2024-01-03"),
	}

	merged := Merge(a, nil, b)

	assert.Equal(t, []string{"ministry/1", "service/1", "service/2"}, keys(merged))
	assert.Empty(t, Merge())

	merged[0].ID = "changed"
	assert.Equal(t, "1", a[0].ID)
}

func TestSort(t *testing.T) {
	records := []models.AttendanceRecord{
		record(models.CollectionMinistry, "a", "e1", models.EntityTypeMinistry, "2024-03-01"),
		record(models.CollectionMinistry, "b", "e1", models.EntityTypeMinistry, "2024-01-15"),
		record(models.CollectionMinistry, "c", "e1", models.EntityTypeMinistry, "2024-02-20"),
	}

	Sort(records)

	assert.Equal(t, []string{"2024-03-01", "2024-02-20", "2024-01-15"}, dates(records))
}

func TestSort_TieBreak(t *testing.T) {
	tests := []struct {
		name     string
		input    []models.AttendanceRecord
		expected []string
	}{
		{
			name: "entity id ascending",
			input: []models.AttendanceRecord{
				record(models.CollectionMinistry, "1", "zeta", models.EntityTypeMinistry, "2024-05-05"),
				record(models.CollectionMinistry, "2", "alpha", models.EntityTypeMinistry, "2024-05-05"),
			},
			expected: []string{"ministry/2", "ministry/1"},
		},
		{
			name: "collection order when entity ids match",
			input: []models.AttendanceRecord{
				record(models.CollectionCellGroup, "x", "same", models.EntityTypeCellGroup, "2024-05-05"),
				record(models.CollectionService, "x", "same", models.EntityTypeService, "2024-05-05"),
				record(models.CollectionMinistry, "x", "same", models.EntityTypeMinistry, "2024-05-05"),
			},
			expected: []string{"ministry/x", "service/x", "cell_group/x"},
		},
		{
			name: "document id last",
			input: []models.AttendanceRecord{
				record(models.CollectionService, "b", "svc", models.EntityTypeService, "2024-05-05"),
				record(models.CollectionService, "a", "svc", models.EntityTypeService, "2024-05-05"),
			},
			expected: []string{"service/a", "service/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forward := append([]models.AttendanceRecord(nil), tt.input...)
			Sort(forward)
			assert.Equal(t, tt.expected, keys(forward))

			reversed := make([]models.AttendanceRecord, 0, len(tt.input))
			for i := len(tt.input) - 1; i >= 0; i-- {
				reversed = append(reversed, tt.input[i])
			}
			Sort(reversed)
			assert.Equal(t, tt.expected, keys(reversed), "order must not depend on arrival order")
		})
	}
}

func TestFilter(t *testing.T) {
	records := []models.AttendanceRecord{
		record(models.CollectionMinistry, "1", "youth", models.EntityTypeMinistry, "2024-05-05"),
		record(models.CollectionMinistry, "2", "choir", models.EntityTypeMinistry, "2024-04-01"),
		record(models.CollectionService, "3", "3", models.EntityTypeService, "2024-05-12"),
		record(models.CollectionService, "4", "4", models.EntityTypeEvent, "2024-06-01"),
		record(models.CollectionCellGroup, "5", "alpha", models.EntityTypeCellGroup, "2024-05-05"),
	}

	tests := []struct {
		name     string
		filter   models.AttendanceFilter
		expected []string
	}{
		{name: "no filter", filter: models.AttendanceFilter{}, expected: []string{"1", "2", "3", "4", "5"}},
		{name: "all is no type filter", filter: models.AttendanceFilter{EntityType: models.EntityTypeAll}, expected: []string{"1", "2", "3", "4", "5"}},
		{name: "entity type", filter: models.AttendanceFilter{EntityType: models.EntityTypeMinistry}, expected: []string{"1", "2"}},
		{name: "entity type override", filter: models.AttendanceFilter{EntityType: models.EntityTypeEvent}, expected: []string{"4"}},
		{name: "entity id", filter: models.AttendanceFilter{EntityID: "alpha"}, expected: []string{"5"}},
		{
			name:     "type and id must both match",
			filter:   models.AttendanceFilter{EntityType: models.EntityTypeService, EntityID: "alpha"},
			expected: []string{},
		},
		{
			name:     "start inclusive",
			filter:   models.AttendanceFilter{DateRange: models.DateRange{Start: "2024-05-12"}},
			expected: []string{"3", "4"},
		},
		{
			name:     "end inclusive",
			filter:   models.AttendanceFilter{DateRange: models.DateRange{End: "2024-05-05"}},
			expected: []string{"1", "2", "5"},
		},
		{
			name: "single day",
			filter: models.AttendanceFilter{
				DateRange: models.DateRange{Start: "2024-05-05", End: "2024-05-05"},
			},
			expected: []string{"1", "5"},
		},
		{
			name: "inverted range is empty",
			filter: models.AttendanceFilter{
				DateRange: models.DateRange{Start: "2024-06-01", End: "2024-05-01"},
			},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.filter)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestFilter_Idempotent(t *testing.T) {
	records := []models.AttendanceRecord{
		record(models.CollectionMinistry, "1", "youth", models.EntityTypeMinistry, "2024-01-01"),
		record(models.CollectionMinistry, "2", "youth", models.EntityTypeMinistry, "2024-03-01"),
		record(models.CollectionService, "3", "3", models.EntityTypeService, "2024-02-01"),
	}
	filter := models.AttendanceFilter{DateRange: models.DateRange{Start: "2024-01-15", End: "2024-03-01"}}

	once := Filter(records, filter)
	twice := Filter(once, filter)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
	assert.Equal(t, Filter(records, models.AttendanceFilter{}), Filter(records, models.AttendanceFilter{EntityType: models.EntityTypeAll}))
}

func TestSummarize(t *testing.T) {
	ministry, err := Decode(models.CollectionMinistry, "m1", map[string]any{
		"ministry_id":   "youth",
		"meeting_date":  "2024-05-05",
		"total_members": float64(10),
		"attendees":     attendeesRaw(7, 3),
	})
	require.NoError(t, err)
	service, err := Decode(models.CollectionService, "s1", map[string]any{
		"meeting_date": "2024-05-05",
		"attendees":    attendeesRaw(5, 0),
	})
	require.NoError(t, err)

	summary := Summarize([]models.AttendanceRecord{ministry, service})

	assert.Equal(t, 2, summary.TotalEvents)
	assert.Equal(t, 15, summary.TotalMembers)
	assert.Equal(t, 12, summary.TotalAttended)
	assert.Equal(t, 80, summary.OverallRate)

	assert.Equal(t, models.TypeSummary{Count: 1, Members: 10, Attended: 7, Rate: 70}, summary.ByType[models.EntityTypeMinistry])
	assert.Equal(t, models.TypeSummary{Count: 1, Members: 5, Attended: 5, Rate: 100}, summary.ByType[models.EntityTypeService])
	assert.Len(t, summary.ByType, 2)
}

func TestSummarize_RatesFromFinalSums(t *testing.T) {
	// Averaging per-record rates would give (100 + 0) / 2 = 50.
	records := []models.AttendanceRecord{
		{EntityType: models.EntityTypeMinistry, TotalMembers: 1, TotalAttended: 1},
		{EntityType: models.EntityTypeMinistry, TotalMembers: 9, TotalAttended: 0},
	}

	summary := Summarize(records)

	assert.Equal(t, 10, summary.OverallRate)
	assert.Equal(t, 10, summary.ByType[models.EntityTypeMinistry].Rate)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)

	assert.Equal(t, 0, summary.TotalEvents)
	assert.Equal(t, 0, summary.OverallRate)
	assert.NotNil(t, summary.ByType)
	assert.Empty(t, summary.ByType)
}

func TestSummarizeRange(t *testing.T) {
	early := record(models.CollectionMinistry, "1", "youth", models.EntityTypeMinistry, "2024-01-01")
	early.TotalMembers, early.TotalAttended = 4, 4
	late := record(models.CollectionCellGroup, "2", "alpha", models.EntityTypeCellGroup, "2024-06-01")
	late.TotalMembers, late.TotalAttended = 6, 3

	summary := SummarizeRange(models.DateRange{Start: "2024-02-01"},
		[]models.AttendanceRecord{early}, []models.AttendanceRecord{late})

	assert.Equal(t, 1, summary.TotalEvents)
	assert.Equal(t, 50, summary.OverallRate)
	_, hasMinistry := summary.ByType[models.EntityTypeMinistry]
	assert.False(t, hasMinistry)

	all := SummarizeRange(models.DateRange{}, []models.AttendanceRecord{early}, []models.AttendanceRecord{late})
	assert.Equal(t, 2, all.TotalEvents)
	assert.Equal(t, 70, all.OverallRate)
}

func TestBuild_EndToEnd(t *testing.T) {
	youth, err := Decode(models.CollectionMinistry, "doc-youth", map[string]any{
		"ministry_id":   "youth",
		"ministry_name": "Youth",
		"meeting_date":  "2024-05-05",
		"total_members": float64(10),
		"attendees":     attendeesRaw(8, 2),
	})
	require.NoError(t, err)
	alpha, err := Decode(models.CollectionCellGroup, "doc-alpha", map[string]any{
		"cell_group_id":   "alpha",
		"cell_group_name": "Alpha",
		"meeting_date":    "2024-05-05",
		"total_members":   float64(6),
		"attendees":       attendeesRaw(4, 2),
	})
	require.NoError(t, err)
	sunday, err := Decode(models.CollectionService, "doc-sunday", map[string]any{
		"service_id":   "sunday-morning",
		"service_name": "Sunday Morning",
		"meeting_date": "2024-05-05",
		"attendees":    attendeesRaw(50, 0),
	})
	require.NoError(t, err)

	ministries := []models.AttendanceRecord{youth}
	services := []models.AttendanceRecord{sunday}
	cellGroups := []models.AttendanceRecord{alpha}

	byType := Build(models.AttendanceFilter{EntityType: models.EntityTypeMinistry}, ministries, services, cellGroups)
	require.Len(t, byType, 1)
	assert.Equal(t, "Youth", byType[0].EntityName)
	assert.Equal(t, 80, byType[0].AttendanceRate)

	oneDay := models.AttendanceFilter{DateRange: models.DateRange{Start: "2024-05-05", End: "2024-05-05"}}
	all := Build(oneDay, ministries, services, cellGroups)
	assert.Equal(t, []string{"Alpha", "Sunday Morning", "Youth"}, []string{all[0].EntityName, all[1].EntityName, all[2].EntityName})
	assert.Equal(t, 50, all[1].TotalMembers)
	assert.Equal(t, 100, all[1].AttendanceRate)

	// Same view regardless of which collection arrived first.
	assert.Equal(t, all, Build(oneDay, cellGroups, services, ministries))
}
