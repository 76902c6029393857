// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package aggregation turns raw attendance documents from the source
// collections into unified records, and combines those records into the
// sorted list and roll-up summary served to consumers.
package aggregation

import (
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// Decode maps a raw stored document into the unified record shape.
//
// The returned record is always usable. Absent fields take their defaults
// silently; fields that are present but malformed also take their defaults
// and are reported through a *DecodeError.
func Decode(collection models.SourceCollection, documentID string, raw map[string]any) (models.AttendanceRecord, error) {
	d := &documentDecoder{raw: raw}

	var doc models.SourceDocument
	switch collection {
	case models.CollectionMinistry:
		doc = decodeMinistry(d, documentID)
	case models.CollectionCellGroup:
		doc = decodeCellGroup(d, documentID)
	default:
		doc = decodeService(d, documentID)
	}

	record := doc.ToRecord()
	if len(d.issues) > 0 {
		return record, &DecodeError{
			Collection: collection,
			DocumentID: documentID,
			Fields:     d.issues,
		}
	}
	return record, nil
}

// DecodeRaw is Decode for a document fetched with its revision.
func DecodeRaw(collection models.SourceCollection, doc *models.RawDocument) (models.AttendanceRecord, error) {
	return Decode(collection, doc.ID, doc.Fields)
}

func decodeMinistry(d *documentDecoder, documentID string) *models.MinistryAttendance {
	doc := &models.MinistryAttendance{UID: documentID}
	decodeField(d, "ministry_id", &doc.MinistryID)
	decodeField(d, "ministry_name", &doc.MinistryName)
	doc.EntityType = d.decodeEntityType()
	doc.MeetingDate = d.decodeMeetingDate()
	doc.Attendees = d.decodeAttendees()
	doc.TotalMembers = d.decodeMemberCount()
	decodeField(d, "notes", &doc.Notes)
	doc.CreatedAt = d.decodeTime("created_at")
	doc.UpdatedAt = d.decodeTime("updated_at")
	return doc
}

func decodeService(d *documentDecoder, documentID string) *models.ServiceAttendance {
	doc := &models.ServiceAttendance{UID: documentID}
	decodeField(d, "service_id", &doc.ServiceID)
	decodeField(d, "service_name", &doc.ServiceName)
	doc.EntityType = d.decodeEntityType()
	doc.MeetingDate = d.decodeMeetingDate()
	doc.Attendees = d.decodeAttendees()
	doc.TotalMembers = d.decodeMemberCount()
	decodeField(d, "notes", &doc.Notes)
	doc.CreatedAt = d.decodeTime("created_at")
	doc.UpdatedAt = d.decodeTime("updated_at")
	return doc
}

func decodeCellGroup(d *documentDecoder, documentID string) *models.CellGroupAttendance {
	doc := &models.CellGroupAttendance{UID: documentID}
	decodeField(d, "cell_group_id", &doc.CellGroupID)
	decodeField(d, "cell_group_name", &doc.CellGroupName)
	doc.EntityType = d.decodeEntityType()
	doc.MeetingDate = d.decodeMeetingDate()
	doc.Attendees = d.decodeAttendees()
	doc.TotalMembers = d.decodeMemberCount()
	decodeField(d, "notes", &doc.Notes)
	doc.CreatedAt = d.decodeTime("created_at")
	doc.UpdatedAt = d.decodeTime("updated_at")
	return doc
}
