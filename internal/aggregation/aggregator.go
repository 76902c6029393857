// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package aggregation

import (
	"cmp"
	"slices"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// Merge concatenates the records of every collection into one new slice.
func Merge(sets ...[]models.AttendanceRecord) []models.AttendanceRecord {
	size := 0
	for _, set := range sets {
		size += len(set)
	}
	merged := make([]models.AttendanceRecord, 0, size)
	for _, set := range sets {
		merged = append(merged, set...)
	}
	return merged
}

// Filter returns the records matching every set field of the filter.
// Checks run in order: entity type, entity id, start date, end date.
func Filter(records []models.AttendanceRecord, filter models.AttendanceFilter) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.AttendanceRecord, filter models.AttendanceFilter) bool {
	if filter.EntityType != "" && filter.EntityType != models.EntityTypeAll && r.EntityType != filter.EntityType {
		return false
	}
	if filter.EntityID != "" && r.EntityID != filter.EntityID {
		return false
	}
	return filter.DateRange.Contains(r.MeetingDate)
}

// Sort orders records by meeting date, newest first. Dates are compared as
// strings. Records on the same date are ordered by entity id, then by
// collection, then by document id, so the result never depends on the order
// in which the collections delivered their data.
func Sort(records []models.AttendanceRecord) {
	slices.SortStableFunc(records, compareRecords)
}

func compareRecords(a, b models.AttendanceRecord) int {
	if c := cmp.Compare(b.MeetingDate, a.MeetingDate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Collection.Order(), b.Collection.Order()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Build merges the given sets, filters and sorts them.
func Build(filter models.AttendanceFilter, sets ...[]models.AttendanceRecord) []models.AttendanceRecord {
	records := Filter(Merge(sets...), filter)
	Sort(records)
	return records
}

// Summarize rolls the records up, overall and per entity type. Rates are
// derived once all sums are final.
func Summarize(records []models.AttendanceRecord) models.AttendanceSummary {
	summary := models.AttendanceSummary{
		ByType: make(map[models.EntityType]models.TypeSummary),
	}

	for _, r := range records {
		summary.TotalEvents++
		summary.TotalMembers += r.TotalMembers
		summary.TotalAttended += r.TotalAttended

		byType := summary.ByType[r.EntityType]
		byType.Count++
		byType.Members += r.TotalMembers
		byType.Attended += r.TotalAttended
		summary.ByType[r.EntityType] = byType
	}

	summary.OverallRate = models.AttendanceRate(summary.TotalAttended, summary.TotalMembers)
	for entityType, byType := range summary.ByType {
		byType.Rate = models.AttendanceRate(byType.Attended, byType.Members)
		summary.ByType[entityType] = byType
	}

	return summary
}

// SummarizeRange summarizes every record within the date range, ignoring
// entity filters.
func SummarizeRange(dates models.DateRange, sets ...[]models.AttendanceRecord) models.AttendanceSummary {
	return Summarize(Filter(Merge(sets...), models.AttendanceFilter{DateRange: dates}))
}
