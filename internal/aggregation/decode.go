// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package aggregation

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// FieldError describes a document field that was present but could not be decoded.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// DecodeError lists the malformed fields of a document. A DecodeError never
// means the record is unusable: every malformed field was replaced by its default.
type DecodeError struct {
	Collection models.SourceCollection
	DocumentID string
	Fields     []FieldError
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("malformed %s attendance document %q: %s",
		e.Collection, e.DocumentID, strings.Join(parts, "; "))
}

// HasField reports whether the named field was reported as malformed.
func (e *DecodeError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// documentDecoder decodes the fields of one raw document one at a time so
// that a bad field only costs that field.
type documentDecoder struct {
	raw    map[string]any
	issues []FieldError
}

func (d *documentDecoder) fail(field string, err error) {
	d.issues = append(d.issues, FieldError{Field: field, Err: err})
}

// decodeValue converts a single raw JSON value into T.
func decodeValue[T any](value any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(value); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// decodeField decodes raw[key] into dst. An absent or null field leaves dst
// untouched; a malformed one leaves dst untouched and is recorded.
func decodeField[T any](d *documentDecoder, key string, dst *T) {
	value, ok := d.raw[key]
	if !ok || value == nil {
		return
	}
	out, err := decodeValue[T](value)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = out
}

// decodeAttendees decodes the attendee list entry by entry. Entries that
// cannot be decoded are dropped and reported as attendees[i].
func (d *documentDecoder) decodeAttendees() []models.Attendee {
	value, ok := d.raw["attendees"]
	if !ok || value == nil {
		return []models.Attendee{}
	}

	items, ok := value.([]any)
	if !ok {
		d.fail("attendees", fmt.Errorf("expected a list, got %T", value))
		return []models.Attendee{}
	}

	attendees := make([]models.Attendee, 0, len(items))
	for i, item := range items {
		if _, isObject := item.(map[string]any); !isObject {
			d.fail(fmt.Sprintf("attendees[%d]", i), fmt.Errorf("expected an object, got %T", item))
			continue
		}
		attendee, err := decodeValue[models.Attendee](item)
		if err != nil {
			d.fail(fmt.Sprintf("attendees[%d]", i), err)
			continue
		}
		attendees = append(attendees, attendee)
	}
	return attendees
}

// decodeMeetingDate keeps the stored date even when it is not YYYY-MM-DD,
// but reports it: such a date breaks the lexicographic ordering of the view.
func (d *documentDecoder) decodeMeetingDate() string {
	var date string
	decodeField(d, "meeting_date", &date)
	if date == "" {
		return ""
	}
	if _, err := time.Parse(models.MeetingDateLayout, date); err != nil {
		d.fail("meeting_date", fmt.Errorf("not an ISO date: %w", err))
	}
	return date
}

// decodeEntityType returns "" when the stored value is absent or unknown.
func (d *documentDecoder) decodeEntityType() models.EntityType {
	var raw string
	decodeField(d, "entity_type", &raw)
	if raw == "" {
		return ""
	}
	entityType := models.EntityType(raw)
	if !entityType.IsValid() {
		d.fail("entity_type", fmt.Errorf("unknown entity type %q", raw))
		return ""
	}
	return entityType
}

// decodeTime decodes an optional timestamp field.
func (d *documentDecoder) decodeTime(key string) *time.Time {
	var t time.Time
	decodeField(d, key, &t)
	if t.IsZero() {
		return nil
	}
	return &t
}

// decodeMemberCount decodes total_members. Negative counts are malformed.
func (d *documentDecoder) decodeMemberCount() int {
	var count int
	decodeField(d, "total_members", &count)
	if count < 0 {
		d.fail("total_members", fmt.Errorf("negative member count %d", count))
		return 0
	}
	return count
}
