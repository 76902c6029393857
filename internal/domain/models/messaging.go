// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// NATS subjects the attendance service publishes to.
const (
	// AttendanceCreatedSubject is the subject for new attendance sessions.
	// The subject is of the form: lfx.attendance.created
	AttendanceCreatedSubject = "lfx.attendance.created"

	// AttendanceUpdatedSubject is the subject for attendee list edits.
	// The subject is of the form: lfx.attendance.updated
	AttendanceUpdatedSubject = "lfx.attendance.updated"

	// AttendanceDeletedSubject is the subject for removed attendance sessions.
	// The subject is of the form: lfx.attendance.deleted
	AttendanceDeletedSubject = "lfx.attendance.deleted"
)

// NATS subjects the attendance service answers requests on.
const (
	// AttendanceSummaryGetSubject returns the summary for a date range.
	AttendanceSummaryGetSubject = "lfx.attendance.summary.get"

	// AttendanceListGetSubject returns the filtered, sorted attendance list.
	AttendanceListGetSubject = "lfx.attendance.list.get"
)

// MessageAction is a type for the action of an attendance event.
type MessageAction string

// MessageAction constants for the action of an attendance event.
const (
	ActionCreated MessageAction = "created"
	ActionUpdated MessageAction = "updated"
	ActionDeleted MessageAction = "deleted"
)

// AttendanceEventMessage is the body published after a successful mutation.
type AttendanceEventMessage struct {
	Action     MessageAction     `json:"action"`
	Collection SourceCollection  `json:"collection"`
	DocumentID string            `json:"document_id"`
	Record     *AttendanceRecord `json:"record,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// AttendanceListQuery is the body of a list request over NATS.
type AttendanceListQuery struct {
	AttendanceFilter
}

// AttendanceSummaryQuery is the body of a summary request over NATS.
type AttendanceSummaryQuery struct {
	DateRange
}
