// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"math"
	"time"
)

// EntityType tags the kind of entity attendance was taken for.
type EntityType string

// Entity types known to the attendance service.
const (
	EntityTypeMinistry   EntityType = "ministry"
	EntityTypeService    EntityType = "service"
	EntityTypeEvent      EntityType = "event"
	EntityTypeSmallGroup EntityType = "small_group"
	EntityTypeCellGroup  EntityType = "cell_group"

	// EntityTypeAll is a filter value only; it never appears on a record.
	EntityTypeAll EntityType = "all"
)

// IsValid reports whether the entity type can appear on a record.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeMinistry, EntityTypeService, EntityTypeEvent, EntityTypeSmallGroup, EntityTypeCellGroup:
		return true
	}
	return false
}

// SourceCollection identifies one of the independently stored groupings of
// attendance documents. Each collection has its own document shape.
type SourceCollection string

// Source collections, in their canonical order.
const (
	CollectionMinistry  SourceCollection = "ministry"
	CollectionService   SourceCollection = "service"
	CollectionCellGroup SourceCollection = "cell_group"
)

// AllCollections returns every source collection in canonical order.
func AllCollections() []SourceCollection {
	return []SourceCollection{CollectionMinistry, CollectionService, CollectionCellGroup}
}

// ParseSourceCollection converts a raw string into a SourceCollection.
func ParseSourceCollection(s string) (SourceCollection, error) {
	for _, c := range AllCollections() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown attendance collection %q", s)
}

// Order returns the position of the collection in canonical order, or -1.
func (c SourceCollection) Order() int {
	for i, known := range AllCollections() {
		if known == c {
			return i
		}
	}
	return -1
}

// DefaultEntityType is the entity type of records read from the collection
// when the document does not carry one.
func (c SourceCollection) DefaultEntityType() EntityType {
	switch c {
	case CollectionMinistry:
		return EntityTypeMinistry
	case CollectionCellGroup:
		return EntityTypeCellGroup
	default:
		return EntityTypeService
	}
}

// Attendee is one member's entry within a single meeting's attendance.
type Attendee struct {
	MemberID         string `json:"member_id" validate:"required"`
	MembershipNumber string `json:"membership_number,omitempty"`
	Name             string `json:"name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty" validate:"omitempty,email"`
	Attended         bool   `json:"attended"`
	// CheckInTime is a display string and is never used for ordering.
	CheckInTime string `json:"check_in_time,omitempty"`
}

// AttendanceRecord is the unified shape of an attendance document, whichever
// collection it was read from.
type AttendanceRecord struct {
	ID             string           `json:"id"`
	Collection     SourceCollection `json:"collection"`
	EntityID       string           `json:"entity_id"`
	EntityName     string           `json:"entity_name"`
	EntityType     EntityType       `json:"entity_type"`
	MeetingDate    string           `json:"meeting_date"`
	Attendees      []Attendee       `json:"attendees"`
	TotalMembers   int              `json:"total_members"`
	TotalAttended  int              `json:"total_attended"`
	AttendanceRate int              `json:"attendance_rate"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      *time.Time       `json:"created_at,omitempty"`
	UpdatedAt      *time.Time       `json:"updated_at,omitempty"`
}

// Key returns the identity of the record across all collections.
// Document ids are only unique within a collection.
func (r *AttendanceRecord) Key() string {
	return RecordKey(r.Collection, r.ID)
}

// RecordKey builds the cross-collection identity of a document.
func RecordKey(collection SourceCollection, documentID string) string {
	return fmt.Sprintf("%s/%s", collection, documentID)
}

// Tags generates the set of tags published with attendance events.
func (r *AttendanceRecord) Tags() []string {
	if r == nil {
		return nil
	}

	tags := []string{}
	if r.ID != "" {
		tags = append(tags, r.ID, fmt.Sprintf("attendance_uid:%s", r.ID))
	}
	if r.Collection != "" {
		tags = append(tags, fmt.Sprintf("collection:%s", r.Collection))
	}
	if r.EntityID != "" {
		tags = append(tags, fmt.Sprintf("entity_id:%s", r.EntityID))
	}
	if r.EntityType != "" {
		tags = append(tags, fmt.Sprintf("entity_type:%s", r.EntityType))
	}
	if r.MeetingDate != "" {
		tags = append(tags, fmt.Sprintf("meeting_date:%s", r.MeetingDate))
	}
	return tags
}

// TypeSummary holds the roll-up for a single entity type.
type TypeSummary struct {
	Count    int `json:"count"`
	Members  int `json:"members"`
	Attended int `json:"attended"`
	Rate     int `json:"rate"`
}

// AttendanceSummary is the roll-up over a set of attendance records.
type AttendanceSummary struct {
	TotalEvents   int                        `json:"total_events"`
	TotalMembers  int                        `json:"total_members"`
	TotalAttended int                        `json:"total_attended"`
	OverallRate   int                        `json:"overall_rate"`
	ByType        map[EntityType]TypeSummary `json:"by_type"`
}

// DateRange bounds meeting dates, both ends inclusive. Empty bounds are open.
type DateRange struct {
	Start string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Contains reports whether the meeting date falls within the range.
// Comparison is lexicographic, which is chronological for YYYY-MM-DD dates.
func (d DateRange) Contains(meetingDate string) bool {
	if d.Start != "" && meetingDate < d.Start {
		return false
	}
	if d.End != "" && meetingDate > d.End {
		return false
	}
	return true
}

// AttendanceFilter selects records out of the unified list. Every field is optional.
type AttendanceFilter struct {
	EntityType EntityType `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	DateRange
}

// AttendanceRate returns round(100 * attended / members), 0 when members is 0.
// The result is clamped to [0, 100] so a stale member count cannot push it past 100.
func AttendanceRate(attended, members int) int {
	if members <= 0 || attended <= 0 {
		return 0
	}
	rate := int(math.Round(100 * float64(attended) / float64(members)))
	if rate > 100 {
		return 100
	}
	return rate
}

// CountAttended returns the number of attendees flagged as attended.
func CountAttended(attendees []Attendee) int {
	count := 0
	for _, a := range attendees {
		if a.Attended {
			count++
		}
	}
	return count
}
