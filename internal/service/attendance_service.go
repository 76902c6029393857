// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/aggregation"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/live"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/concurrent"
)

// AttendanceService implements the attendance mutations, one-shot queries and
// live subscriptions.
type AttendanceService struct {
	Repository     domain.AttendanceRepository
	Watcher        domain.AttendanceWatcher
	MessageBuilder domain.MessageBuilder
	Config         ServiceConfig
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(
	repository domain.AttendanceRepository,
	watcher domain.AttendanceWatcher,
	messageBuilder domain.MessageBuilder,
	config ServiceConfig,
) *AttendanceService {
	return &AttendanceService{
		Repository:     repository,
		Watcher:        watcher,
		MessageBuilder: messageBuilder,
		Config:         config,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AttendanceService) ServiceReady() bool {
	return s.Repository != nil &&
		s.Watcher != nil &&
		s.MessageBuilder != nil
}

func (s *AttendanceService) notReady(ctx context.Context) error {
	slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
	return domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
}

func (s *AttendanceService) fetchPool() *concurrent.WorkerPool {
	workers := s.Config.FetchWorkers
	if workers <= 0 {
		workers = len(models.AllCollections())
	}
	return concurrent.NewWorkerPool(workers)
}

// CreateAttendance validates and persists a new attendance session. Derived
// fields are computed here; callers never supply them.
func (s *AttendanceService) CreateAttendance(ctx context.Context, req *models.CreateAttendanceRequest) (*models.AttendanceRecord, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if req == nil {
		slog.WarnContext(ctx, "attendance request is required")
		return nil, domain.NewValidationError("attendance request is required")
	}
	if err := validateStruct(req); err != nil {
		slog.WarnContext(ctx, "invalid attendance request", logging.ErrKey, err)
		return nil, err
	}

	uid := uuid.New().String()
	ctx = logging.AppendCtx(ctx, slog.String("collection", string(req.Collection)))
	ctx = logging.AppendCtx(ctx, slog.String("attendance_uid", uid))

	document := models.NewSourceDocument(req.Collection, uid, req, time.Now().UTC())
	if err := s.Repository.Create(ctx, document); err != nil {
		slog.ErrorContext(ctx, "error creating attendance", logging.ErrKey, err)
		return nil, err
	}

	record := document.ToRecord()
	slog.DebugContext(ctx, "created attendance",
		"attendees", len(record.Attendees),
		"total_attended", record.TotalAttended,
	)

	s.publish(ctx, models.ActionCreated, req.Collection, uid, &record)

	return &record, nil
}

// UpdateAttendanceAttendees replaces the attendee list of a session and
// recomputes its derived fields. The stored roster size is kept unless the
// request carries a new one.
func (s *AttendanceService) UpdateAttendanceAttendees(ctx context.Context, req *models.UpdateAttendeesRequest) (*models.AttendanceRecord, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if req == nil {
		slog.WarnContext(ctx, "update request is required")
		return nil, domain.NewValidationError("update request is required")
	}
	if err := validateStruct(req); err != nil {
		slog.WarnContext(ctx, "invalid update attendees request", logging.ErrKey, err)
		return nil, err
	}

	ctx = logging.AppendCtx(ctx, slog.String("collection", string(req.Collection)))
	ctx = logging.AppendCtx(ctx, slog.String("attendance_uid", req.ID))

	existing, err := s.Repository.GetRaw(ctx, req.Collection, req.ID)
	if err != nil {
		slog.ErrorContext(ctx, "error getting attendance", logging.ErrKey, err)
		return nil, err
	}

	record, err := aggregation.DecodeRaw(req.Collection, existing)
	if err != nil {
		slog.WarnContext(ctx, "stored attendance decoded with defaults", logging.ErrKey, err)
	}

	// record.TotalMembers already fell back to the old list length when no
	// roster size is stored, so the stated count is read on its own.
	statedMembers := statedMemberCount(req.Collection, existing)
	if req.TotalMembers != nil {
		statedMembers = *req.TotalMembers
	}

	attendees := req.Attendees
	if attendees == nil {
		attendees = []models.Attendee{}
	}
	members := statedMembers
	if members <= 0 {
		members = len(attendees)
	}
	attended := models.CountAttended(attendees)
	rate := models.AttendanceRate(attended, members)
	now := time.Now().UTC()

	fields := map[string]any{
		"attendees":       attendees,
		"total_attended":  attended,
		"attendance_rate": rate,
		"updated_at":      now,
	}
	if req.TotalMembers != nil {
		fields["total_members"] = *req.TotalMembers
	}

	if err := s.Repository.Patch(ctx, req.Collection, req.ID, fields, existing.Revision); err != nil {
		slog.ErrorContext(ctx, "error updating attendance attendees", logging.ErrKey, err)
		return nil, err
	}

	record.Attendees = attendees
	record.TotalMembers = members
	record.TotalAttended = attended
	record.AttendanceRate = rate
	record.UpdatedAt = &now

	slog.DebugContext(ctx, "updated attendance attendees",
		"attendees", len(attendees),
		"total_attended", attended,
		"attendance_rate", rate,
	)

	s.publish(ctx, models.ActionUpdated, req.Collection, req.ID, &record)

	return &record, nil
}

// statedMemberCount returns the roster size stored on the document, 0 when
// it is absent or malformed.
func statedMemberCount(collection models.SourceCollection, doc *models.RawDocument) int {
	stated, ok := doc.Fields["total_members"]
	if !ok {
		return 0
	}
	record, _ := aggregation.Decode(collection, doc.ID, map[string]any{"total_members": stated})
	return record.TotalMembers
}

// DeleteAttendance removes a session from the collection that holds it.
func (s *AttendanceService) DeleteAttendance(ctx context.Context, req *models.DeleteAttendanceRequest) error {
	if !s.ServiceReady() {
		return s.notReady(ctx)
	}
	if req == nil {
		slog.WarnContext(ctx, "delete request is required")
		return domain.NewValidationError("delete request is required")
	}
	if err := validateStruct(req); err != nil {
		slog.WarnContext(ctx, "invalid delete attendance request", logging.ErrKey, err)
		return err
	}

	ctx = logging.AppendCtx(ctx, slog.String("collection", string(req.Collection)))
	ctx = logging.AppendCtx(ctx, slog.String("attendance_uid", req.ID))

	if err := s.Repository.Delete(ctx, req.Collection, req.ID); err != nil {
		if domain.IsNotFound(err) {
			slog.WarnContext(ctx, "attendance not found")
		} else {
			slog.ErrorContext(ctx, "error deleting attendance", logging.ErrKey, err)
		}
		return err
	}

	slog.DebugContext(ctx, "deleted attendance")
	s.publish(ctx, models.ActionDeleted, req.Collection, req.ID, nil)

	return nil
}

// DeleteAttendanceEverywhere deletes the id from every collection at once,
// for callers that do not know which collection holds it. Not-found in a
// collection is not an error. The result lists the collections the id was
// actually removed from, which may be none.
func (s *AttendanceService) DeleteAttendanceEverywhere(ctx context.Context, id string) (*models.DeleteEverywhereResult, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if id == "" {
		slog.WarnContext(ctx, "attendance id is required")
		return nil, domain.NewValidationError("attendance id is required")
	}

	ctx = logging.AppendCtx(ctx, slog.String("attendance_uid", id))

	collections := models.AllCollections()
	deletes := make([]func() error, 0, len(collections))
	for _, collection := range collections {
		deletes = append(deletes, func() error {
			return s.Repository.Delete(ctx, collection, id)
		})
	}

	pool := concurrent.NewWorkerPool(s.Config.DeleteWorkers)
	errs := pool.RunEach(ctx, deletes...)

	result := &models.DeleteEverywhereResult{ID: id, DeletedFrom: []models.SourceCollection{}}
	var failures []error
	for i, collection := range collections {
		var err error
		if errs != nil {
			err = errs[i]
		}
		switch {
		case err == nil:
			result.DeletedFrom = append(result.DeletedFrom, collection)
		case domain.IsNotFound(err):
			slog.DebugContext(ctx, "attendance not in collection", "collection", collection)
		default:
			slog.ErrorContext(ctx, "error deleting attendance", "collection", collection, logging.ErrKey, err)
			failures = append(failures, err)
		}
	}

	for _, collection := range result.DeletedFrom {
		s.publish(ctx, models.ActionDeleted, collection, id, nil)
	}

	if len(failures) > 0 {
		return result, errors.Join(failures...)
	}
	if len(result.DeletedFrom) == 0 {
		slog.WarnContext(ctx, "attendance id not found in any collection")
	} else {
		slog.DebugContext(ctx, "deleted attendance", "deleted_from", result.DeletedFrom)
	}
	return result, nil
}

// GetAttendanceList returns the filtered attendance list, newest first.
func (s *AttendanceService) GetAttendanceList(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if err := validateFilter(filter); err != nil {
		slog.WarnContext(ctx, "invalid attendance filter", logging.ErrKey, err)
		return nil, err
	}

	sets, err := s.fetchAll(ctx, filter.DateRange)
	if err != nil {
		return nil, err
	}

	records := aggregation.Build(filter, sets...)
	slog.DebugContext(ctx, "returning attendance list", "count", len(records))
	return records, nil
}

// GetAttendanceSummary returns the summary of every session in the date range.
func (s *AttendanceService) GetAttendanceSummary(ctx context.Context, dates models.DateRange) (*models.AttendanceSummary, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if err := validateStruct(dates); err != nil {
		slog.WarnContext(ctx, "invalid date range", logging.ErrKey, err)
		return nil, err
	}

	sets, err := s.fetchAll(ctx, dates)
	if err != nil {
		return nil, err
	}

	summary := aggregation.SummarizeRange(dates, sets...)
	return &summary, nil
}

// SubscribeToAttendanceList starts a live list view owned by the caller.
// The returned function tears it down and must be called once the caller is
// done.
func (s *AttendanceService) SubscribeToAttendanceList(
	ctx context.Context,
	filter models.AttendanceFilter,
	onRecords live.RecordsHandler,
	onError live.ErrorHandler,
) (domain.CancelFunc, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	view := live.NewListView(s.Watcher, filter, onRecords, onError)
	if err := view.Start(ctx); err != nil {
		return nil, domain.NewUnavailableError("failed to subscribe to attendance", err)
	}
	return view.Close, nil
}

// SubscribeToAttendanceSummary starts a live summary view owned by the caller.
func (s *AttendanceService) SubscribeToAttendanceSummary(
	ctx context.Context,
	dates models.DateRange,
	onSummary live.SummaryHandler,
	onError live.ErrorHandler,
) (domain.CancelFunc, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if err := validateStruct(dates); err != nil {
		return nil, err
	}

	view := live.NewSummaryView(s.Repository, s.Watcher, s.fetchPool(), dates, onSummary, onError)
	if err := view.Start(ctx); err != nil {
		return nil, domain.NewUnavailableError("failed to subscribe to attendance summary", err)
	}
	return view.Close, nil
}

func (s *AttendanceService) fetchAll(ctx context.Context, dates models.DateRange) ([][]models.AttendanceRecord, error) {
	sets, err := concurrent.Map(ctx, s.fetchPool(), models.AllCollections(),
		func(ctx context.Context, collection models.SourceCollection) ([]models.AttendanceRecord, error) {
			docs, err := s.Repository.List(ctx, collection, dates)
			if err != nil {
				return nil, err
			}
			records := make([]models.AttendanceRecord, 0, len(docs))
			for _, doc := range docs {
				record, err := aggregation.DecodeRaw(collection, doc)
				if err != nil {
					slog.WarnContext(ctx, "attendance document decoded with defaults",
						"collection", collection,
						"document_id", doc.ID,
						logging.ErrKey, err,
					)
				}
				records = append(records, record)
			}
			return records, nil
		})
	if err != nil {
		slog.ErrorContext(ctx, "error listing attendance", logging.ErrKey, err)
		return nil, err
	}
	return sets, nil
}

func validateFilter(filter models.AttendanceFilter) error {
	if filter.EntityType != "" && filter.EntityType != models.EntityTypeAll && !filter.EntityType.IsValid() {
		return domain.NewValidationError("unknown entity type "+string(filter.EntityType), domain.ErrValidationFailed)
	}
	return validateStruct(filter)
}

// publish sends an attendance event. Failures are logged and never fail the
// mutation that already succeeded.
func (s *AttendanceService) publish(ctx context.Context, action models.MessageAction, collection models.SourceCollection, id string, record *models.AttendanceRecord) {
	if err := s.MessageBuilder.SendAttendanceEvent(ctx, action, collection, id, record); err != nil {
		slog.ErrorContext(ctx, "failed to send attendance event",
			"action", action,
			logging.ErrKey, err,
		)
	}
}
