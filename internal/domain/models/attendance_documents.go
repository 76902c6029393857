// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// Literal entity name used for service documents that do not carry one.
const DefaultServiceName = "Service"

// MeetingDateLayout is the layout of meeting dates on every document.
const MeetingDateLayout = "2006-01-02"

// SourceDocument is an attendance document as stored in one of the source collections.
type SourceDocument interface {
	// DocumentID returns the id of the document within its collection.
	DocumentID() string
	// SourceCollection returns the collection the document belongs to.
	SourceCollection() SourceCollection
	// ToRecord converts the document into the unified record shape.
	ToRecord() AttendanceRecord
}

// MinistryAttendance is a document of the ministry attendance collection.
type MinistryAttendance struct {
	UID            string     `json:"uid"`
	MinistryID     string     `json:"ministry_id"`
	MinistryName   string     `json:"ministry_name"`
	EntityType     EntityType `json:"entity_type,omitempty"`
	MeetingDate    string     `json:"meeting_date"`
	Attendees      []Attendee `json:"attendees"`
	TotalMembers   int        `json:"total_members,omitempty"`
	TotalAttended  int        `json:"total_attended"`
	AttendanceRate int        `json:"attendance_rate"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// DocumentID implements SourceDocument.
func (m *MinistryAttendance) DocumentID() string { return m.UID }

// SourceCollection implements SourceDocument.
func (m *MinistryAttendance) SourceCollection() SourceCollection { return CollectionMinistry }

// ToRecord implements SourceDocument.
func (m *MinistryAttendance) ToRecord() AttendanceRecord {
	return newRecord(CollectionMinistry, m.UID, m.MinistryID, m.MinistryName, m.EntityType,
		m.MeetingDate, m.Attendees, m.TotalMembers, m.Notes, m.CreatedAt, m.UpdatedAt)
}

// ServiceAttendance is a document of the service attendance collection.
// Services are drop-in: there is no persistent entity and usually no roster size.
type ServiceAttendance struct {
	UID            string     `json:"uid"`
	ServiceID      string     `json:"service_id,omitempty"`
	ServiceName    string     `json:"service_name,omitempty"`
	EntityType     EntityType `json:"entity_type,omitempty"`
	MeetingDate    string     `json:"meeting_date"`
	Attendees      []Attendee `json:"attendees"`
	TotalMembers   int        `json:"total_members,omitempty"`
	TotalAttended  int        `json:"total_attended"`
	AttendanceRate int        `json:"attendance_rate"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// DocumentID implements SourceDocument.
func (s *ServiceAttendance) DocumentID() string { return s.UID }

// SourceCollection implements SourceDocument.
func (s *ServiceAttendance) SourceCollection() SourceCollection { return CollectionService }

// ToRecord implements SourceDocument.
func (s *ServiceAttendance) ToRecord() AttendanceRecord {
	entityID := s.ServiceID
	if entityID == "" {
		entityID = s.UID
	}
	entityName := s.ServiceName
	if entityName == "" {
		entityName = DefaultServiceName
	}
	return newRecord(CollectionService, s.UID, entityID, entityName, s.EntityType,
		s.MeetingDate, s.Attendees, s.TotalMembers, s.Notes, s.CreatedAt, s.UpdatedAt)
}

// CellGroupAttendance is a document of the cell group attendance collection.
type CellGroupAttendance struct {
	UID            string     `json:"uid"`
	CellGroupID    string     `json:"cell_group_id"`
	CellGroupName  string     `json:"cell_group_name"`
	EntityType     EntityType `json:"entity_type,omitempty"`
	MeetingDate    string     `json:"meeting_date"`
	Attendees      []Attendee `json:"attendees"`
	TotalMembers   int        `json:"total_members,omitempty"`
	TotalAttended  int        `json:"total_attended"`
	AttendanceRate int        `json:"attendance_rate"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// DocumentID implements SourceDocument.
func (c *CellGroupAttendance) DocumentID() string { return c.UID }

// SourceCollection implements SourceDocument.
func (c *CellGroupAttendance) SourceCollection() SourceCollection { return CollectionCellGroup }

// ToRecord implements SourceDocument.
func (c *CellGroupAttendance) ToRecord() AttendanceRecord {
	return newRecord(CollectionCellGroup, c.UID, c.CellGroupID, c.CellGroupName, c.EntityType,
		c.MeetingDate, c.Attendees, c.TotalMembers, c.Notes, c.CreatedAt, c.UpdatedAt)
}

// newRecord assembles a unified record and derives its computed fields.
// The stored total_attended and attendance_rate are ignored on purpose.
func newRecord(
	collection SourceCollection,
	id, entityID, entityName string,
	entityType EntityType,
	meetingDate string,
	attendees []Attendee,
	statedMembers int,
	notes string,
	createdAt, updatedAt *time.Time,
) AttendanceRecord {
	if !entityType.IsValid() {
		entityType = collection.DefaultEntityType()
	}
	if attendees == nil {
		attendees = []Attendee{}
	}

	totalMembers := statedMembers
	if totalMembers <= 0 {
		totalMembers = len(attendees)
	}
	totalAttended := CountAttended(attendees)

	return AttendanceRecord{
		ID:             id,
		Collection:     collection,
		EntityID:       entityID,
		EntityName:     entityName,
		EntityType:     entityType,
		MeetingDate:    meetingDate,
		Attendees:      attendees,
		TotalMembers:   totalMembers,
		TotalAttended:  totalAttended,
		AttendanceRate: AttendanceRate(totalAttended, totalMembers),
		Notes:          notes,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

// NewSourceDocument builds the collection-specific document for a new
// attendance session with its derived fields already computed.
func NewSourceDocument(collection SourceCollection, uid string, req *CreateAttendanceRequest, now time.Time) SourceDocument {
	attendees := req.Attendees
	if attendees == nil {
		attendees = []Attendee{}
	}

	statedMembers := 0
	if req.TotalMembers != nil {
		statedMembers = *req.TotalMembers
	}
	members := statedMembers
	if members <= 0 {
		members = len(attendees)
	}
	attended := CountAttended(attendees)
	rate := AttendanceRate(attended, members)

	switch collection {
	case CollectionMinistry:
		return &MinistryAttendance{
			UID:            uid,
			MinistryID:     req.EntityID,
			MinistryName:   req.EntityName,
			EntityType:     req.EntityType,
			MeetingDate:    req.MeetingDate,
			Attendees:      attendees,
			TotalMembers:   statedMembers,
			TotalAttended:  attended,
			AttendanceRate: rate,
			Notes:          req.Notes,
			CreatedAt:      &now,
			UpdatedAt:      &now,
		}
	case CollectionCellGroup:
		return &CellGroupAttendance{
			UID:            uid,
			CellGroupID:    req.EntityID,
			CellGroupName:  req.EntityName,
			EntityType:     req.EntityType,
			MeetingDate:    req.MeetingDate,
			Attendees:      attendees,
			TotalMembers:   statedMembers,
			TotalAttended:  attended,
			AttendanceRate: rate,
			Notes:          req.Notes,
			CreatedAt:      &now,
			UpdatedAt:      &now,
		}
	default:
		return &ServiceAttendance{
			UID:            uid,
			ServiceID:      req.EntityID,
			ServiceName:    req.EntityName,
			EntityType:     req.EntityType,
			MeetingDate:    req.MeetingDate,
			Attendees:      attendees,
			TotalMembers:   statedMembers,
			TotalAttended:  attended,
			AttendanceRate: rate,
			Notes:          req.Notes,
			CreatedAt:      &now,
			UpdatedAt:      &now,
		}
	}
}
