// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// filterFromQuery reads the list filter from the query string.
func filterFromQuery(r *http.Request) models.AttendanceFilter {
	query := r.URL.Query()
	return models.AttendanceFilter{
		EntityType: models.EntityType(query.Get("entity_type")),
		EntityID:   query.Get("entity_id"),
		DateRange:  dateRangeFromQuery(r),
	}
}

func dateRangeFromQuery(r *http.Request) models.DateRange {
	query := r.URL.Query()
	return models.DateRange{
		Start: query.Get("start_date"),
		End:   query.Get("end_date"),
	}
}

// GetAttendance lists attendance records, newest first.
func (s *AttendanceAPI) GetAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := s.service.GetAttendanceList(ctx, filterFromQuery(r))
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	writeJSON(ctx, w, http.StatusOK, records)
}

// GetAttendanceSummary returns the attendance totals of a date range.
func (s *AttendanceAPI) GetAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := s.service.GetAttendanceSummary(ctx, dateRangeFromQuery(r))
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, summary)
}

// CreateAttendance records a new attendance session.
func (s *AttendanceAPI) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateAttendanceRequest
	if err := decodeBody(r, &req); err != nil {
		handleError(ctx, w, err)
		return
	}

	record, err := s.service.CreateAttendance(ctx, &req)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, record)
}

// updateAttendeesBody is the body of an attendee update. The collection and
// id come from the path.
type updateAttendeesBody struct {
	Attendees    []models.Attendee `json:"attendees"`
	TotalMembers *int              `json:"total_members,omitempty"`
}

// UpdateAttendanceAttendees replaces the attendee list of a session.
func (s *AttendanceAPI) UpdateAttendanceAttendees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body updateAttendeesBody
	if err := decodeBody(r, &body); err != nil {
		handleError(ctx, w, err)
		return
	}

	record, err := s.service.UpdateAttendanceAttendees(ctx, &models.UpdateAttendeesRequest{
		Collection:   models.SourceCollection(chi.URLParam(r, "collection")),
		ID:           chi.URLParam(r, "id"),
		Attendees:    body.Attendees,
		TotalMembers: body.TotalMembers,
	})
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, record)
}

// DeleteAttendance deletes a session from the collection named in the path.
func (s *AttendanceAPI) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := s.service.DeleteAttendance(ctx, &models.DeleteAttendanceRequest{
		Collection: models.SourceCollection(chi.URLParam(r, "collection")),
		ID:         chi.URLParam(r, "id"),
	})
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// partialDeleteResponse reports a delete-everywhere call that failed on some
// collections after succeeding on others.
type partialDeleteResponse struct {
	errorResponse
	DeletedFrom []models.SourceCollection `json:"deleted_from"`
}

// DeleteAttendanceEverywhere deletes the id from every collection. It answers
// 200 even when no collection held the id; the body says where it was found.
func (s *AttendanceAPI) DeleteAttendanceEverywhere(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.service.DeleteAttendanceEverywhere(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if result == nil || len(result.DeletedFrom) == 0 {
			handleError(ctx, w, err)
			return
		}
		code := statusFor(err)
		slog.ErrorContext(ctx, "attendance partially deleted", logging.ErrKey, err, "deleted_from", result.DeletedFrom)
		writeJSON(ctx, w, code, partialDeleteResponse{
			errorResponse: errorResponse{Code: strconv.Itoa(code), Message: err.Error()},
			DeletedFrom:   result.DeletedFrom,
		})
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

// requireReady rejects requests while the service is missing a dependency.
func (s *AttendanceAPI) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.service.ServiceReady() {
			handleError(r.Context(), w, domain.NewUnavailableError("service not ready", domain.ErrServiceUnavailable))
			return
		}
		next.ServeHTTP(w, r)
	})
}
