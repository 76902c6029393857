// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// CreateAttendanceRequest is the input of a new attendance session. Derived
// fields (total attended, attendance rate) are never accepted from callers.
type CreateAttendanceRequest struct {
	Collection  SourceCollection `json:"collection" validate:"required,oneof=ministry service cell_group"`
	EntityID    string           `json:"entity_id" validate:"required_unless=Collection service"`
	EntityName  string           `json:"entity_name" validate:"required_unless=Collection service"`
	EntityType  EntityType       `json:"entity_type,omitempty" validate:"omitempty,oneof=ministry service event small_group cell_group"`
	MeetingDate string           `json:"meeting_date" validate:"required,datetime=2006-01-02"`
	Attendees   []Attendee       `json:"attendees" validate:"required,min=1,dive"`
	// TotalMembers is the roster size. When nil the attendee list length is used.
	TotalMembers *int   `json:"total_members,omitempty" validate:"omitempty,gte=0"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

// UpdateAttendeesRequest replaces the attendee list of an existing session.
type UpdateAttendeesRequest struct {
	Collection SourceCollection `json:"collection" validate:"required,oneof=ministry service cell_group"`
	ID         string           `json:"id" validate:"required"`
	Attendees  []Attendee       `json:"attendees" validate:"required,dive"`
	// TotalMembers is only set when the roster itself changed.
	TotalMembers *int `json:"total_members,omitempty" validate:"omitempty,gte=0"`
}

// DeleteAttendanceRequest removes a session from a known collection.
type DeleteAttendanceRequest struct {
	Collection SourceCollection `json:"collection" validate:"required,oneof=ministry service cell_group"`
	ID         string           `json:"id" validate:"required"`
}

// DeleteEverywhereResult reports the outcome of a delete attempted in every collection.
type DeleteEverywhereResult struct {
	ID string `json:"id"`
	// DeletedFrom lists the collections that actually held the id.
	DeletedFrom []SourceCollection `json:"deleted_from"`
}
