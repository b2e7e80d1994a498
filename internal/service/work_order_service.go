package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wrenchworks/cmms-api/internal/dto"
	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/internal/repository"
	"github.com/wrenchworks/cmms-api/pkg/config"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
)

const completionHistoryNote = "work order completed"

type workOrderStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, wo *models.WorkOrder) error
	GetByID(ctx context.Context, id string) (*models.WorkOrder, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.WorkOrder, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, params repository.StatusUpdateParams) error
	UpdateAssignment(ctx context.Context, exec sqlx.ExtContext, id, assigneeID string) error
	DeletePending(ctx context.Context, id, creatorID string) (bool, error)
	List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, int, error)
}

type statusHistoryStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.StatusHistory) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]models.StatusHistory, error)
}

type resolutionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, rec *models.ResolutionRecord) error
	GetByWorkOrderID(ctx context.Context, workOrderID string) (*models.ResolutionRecord, error)
	AppendPhotos(ctx context.Context, workOrderID string, photos []string) error
}

type maintenanceHistoryStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.MaintenanceHistory) error
	ListByAsset(ctx context.Context, assetID string, limit, offset int) ([]models.MaintenanceHistory, error)
}

type assetReader interface {
	FindByID(ctx context.Context, id string) (*models.Asset, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type numberAllocator interface {
	Generate(ctx context.Context) (string, error)
}

type assignmentMatcher interface {
	Match(ctx context.Context, attrs models.WorkOrderAttributes) (*string, error)
}

type lifecycleNotifier interface {
	NotifyAssigned(workOrderID, assigneeID, title string)
	NotifyStatusChanged(workOrderID string, from, to models.WorkOrderStatus, title string, recipients []string)
	NotifyCompleted(workOrderID, title string, recipients []string)
}

type photoStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type photoURLSigner interface {
	Generate(recordID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (recordID, relPath string, expiresAt time.Time, err error)
}

// ResolutionPhotoDownload bundles an open photo file with metadata for streaming.
type ResolutionPhotoDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	MimeType  string
}

// WorkOrderService owns the work order lifecycle: creation with number
// allocation and auto-assignment, the status state machine, the completion
// workflow, and resolution photo uploads. All multi-step effects run inside
// one transaction; notifications go out only after commit.
type WorkOrderService struct {
	orders      workOrderStore
	history     statusHistoryStore
	resolutions resolutionStore
	maintenance maintenanceHistoryStore
	assets      assetReader
	users       userReader
	allocator   numberAllocator
	matcher     assignmentMatcher
	notifier    lifecycleNotifier
	photos      photoStore
	signer      photoURLSigner
	tx          txProvider
	metrics     *MetricsService
	uploads     config.UploadsConfig

	// failCreateOnAssignmentError makes creation fail when the matcher
	// errors instead of logging and creating the order unassigned.
	failCreateOnAssignmentError bool

	validator *validator.Validate
	logger    *zap.Logger
}

// WorkOrderServiceDeps bundles the collaborators for construction.
type WorkOrderServiceDeps struct {
	Orders      workOrderStore
	History     statusHistoryStore
	Resolutions resolutionStore
	Maintenance maintenanceHistoryStore
	Assets      assetReader
	Users       userReader
	Allocator   numberAllocator
	Matcher     assignmentMatcher
	Notifier    lifecycleNotifier
	Photos      photoStore
	Signer      photoURLSigner
	Tx          txProvider
	Metrics     *MetricsService
}

// NewWorkOrderService wires the lifecycle engine.
func NewWorkOrderService(deps WorkOrderServiceDeps, assignCfg config.AssignmentConfig, uploadsCfg config.UploadsConfig, logger *zap.Logger) *WorkOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkOrderService{
		orders:                      deps.Orders,
		history:                     deps.History,
		resolutions:                 deps.Resolutions,
		maintenance:                 deps.Maintenance,
		assets:                      deps.Assets,
		users:                       deps.Users,
		allocator:                   deps.Allocator,
		matcher:                     deps.Matcher,
		notifier:                    deps.Notifier,
		photos:                      deps.Photos,
		signer:                      deps.Signer,
		tx:                          deps.Tx,
		metrics:                     deps.Metrics,
		uploads:                     uploadsCfg,
		failCreateOnAssignmentError: assignCfg.FailCreateOnError,
		validator:                   validator.New(),
		logger:                      logger,
	}
}

// Create opens a new work order: allocates a number, runs the assignment
// matcher and persists the order as PENDING.
func (s *WorkOrderService) Create(ctx context.Context, req dto.CreateWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work order payload")
	}
	if !models.ValidPriority(req.Priority) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown priority %q", req.Priority)
	}

	asset, err := s.assets.FindByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "asset %s not found", req.AssetID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}

	number, err := s.allocator.Generate(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrSequenceOverflow) {
			s.metrics.SequenceExhausted()
		}
		return nil, err
	}

	assignedTo, err := s.matcher.Match(ctx, models.WorkOrderAttributes{
		Category:  req.Category,
		Location:  req.Location,
		Priority:  req.Priority,
		AssetType: asset.Type,
	})
	if err != nil {
		if s.failCreateOnAssignmentError {
			return nil, err
		}
		s.logger.Warn("auto-assignment failed, creating work order unassigned",
			zap.String("number", number), zap.Error(err))
		assignedTo = nil
	}

	wo := &models.WorkOrder{
		Number:       number,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Reason:       req.Reason,
		Location:     req.Location,
		Priority:     req.Priority,
		Status:       models.StatusPending,
		AssetID:      req.AssetID,
		CreatedByID:  actor.UserID,
		AssignedToID: assignedTo,
		Attachments:  pq.StringArray(req.Attachments),
	}
	if err := s.orders.Create(ctx, nil, wo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create work order")
	}

	s.metrics.WorkOrderCreated(wo.AssignedToID != nil)
	if wo.AssignedToID != nil {
		s.notifier.NotifyAssigned(wo.ID, *wo.AssignedToID, wo.Title)
	}
	return wo, nil
}

// Assign hands a PENDING work order to a technician and starts it.
func (s *WorkOrderService) Assign(ctx context.Context, id string, req dto.AssignWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.Elevated() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only supervisors and admins can assign work orders")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignee, err := s.users.FindByID(ctx, req.AssignedToID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "user %s not found", req.AssignedToID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	if assignee.Role != models.RoleTechnician && !assignee.Role.Elevated() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "user %s cannot take work orders", assignee.ID)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	wo, err := s.orders.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if wo.Status != models.StatusPending {
		return nil, appErrors.Clonef(appErrors.ErrInvalidState, "work order %s is %s, only pending orders can be assigned", wo.Number, wo.Status)
	}

	now := time.Now().UTC()
	if err := s.orders.UpdateAssignment(ctx, tx, wo.ID, assignee.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign work order")
	}
	startedAt := wo.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := s.orders.UpdateStatus(ctx, tx, repository.StatusUpdateParams{
		ID:         wo.ID,
		FromStatus: models.StatusPending,
		ToStatus:   models.StatusInProgress,
		StartedAt:  startedAt,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start work order")
	}
	if err := s.history.Create(ctx, tx, &models.StatusHistory{
		WorkOrderID: wo.ID,
		FromStatus:  models.StatusPending,
		ToStatus:    models.StatusInProgress,
		ChangedByID: actor.UserID,
		Notes:       fmt.Sprintf("assigned to %s", assignee.FullName),
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status history")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment")
	}

	assigneeID := assignee.ID
	wo.AssignedToID = &assigneeID
	wo.Status = models.StatusInProgress
	wo.StartedAt = startedAt

	s.metrics.StatusTransition(models.StatusPending, models.StatusInProgress)
	s.notifier.NotifyAssigned(wo.ID, assignee.ID, wo.Title)
	s.notifier.NotifyStatusChanged(wo.ID, models.StatusPending, models.StatusInProgress, wo.Title,
		s.recipients(wo, actor.UserID))
	return wo, nil
}

// UpdateStatus validates and executes one status transition.
func (s *WorkOrderService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor *models.JWTClaims) (*models.WorkOrder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown status %q", req.Status)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	wo, err := s.orders.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}

	// Permission is checked before the transition table is consulted.
	if err := s.requireActorMayAct(wo, actor); err != nil {
		return nil, err
	}

	from := wo.Status
	to := req.Status
	if !models.CanTransition(from, to) {
		return nil, appErrors.Clonef(appErrors.ErrInvalidTransition, "transition %s -> %s not allowed", from, to)
	}
	if from == models.StatusPending && to != models.StatusCancelled && wo.AssignedToID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "work order must be assigned before it can be started")
	}

	now := time.Now().UTC()
	params := repository.StatusUpdateParams{ID: wo.ID, FromStatus: from, ToStatus: to}
	if to == models.StatusInProgress && wo.StartedAt == nil {
		params.StartedAt = &now
	}
	if to == models.StatusCompleted {
		params.CompletedAt = &now
	}
	if err := s.orders.UpdateStatus(ctx, tx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrInvalidTransition, "work order %s changed concurrently", wo.Number)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if err := s.history.Create(ctx, tx, &models.StatusHistory{
		WorkOrderID: wo.ID,
		FromStatus:  from,
		ToStatus:    to,
		ChangedByID: actor.UserID,
		Notes:       req.Notes,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status history")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transition")
	}

	wo.Status = to
	if params.StartedAt != nil {
		wo.StartedAt = params.StartedAt
	}
	if params.CompletedAt != nil {
		wo.CompletedAt = params.CompletedAt
	}

	s.metrics.StatusTransition(from, to)
	s.notifier.NotifyStatusChanged(wo.ID, from, to, wo.Title, s.recipients(wo, actor.UserID))
	return wo, nil
}

// Complete runs the completion workflow: preconditions in order, then one
// transaction creating the resolution record, the COMPLETED transition, the
// history row and the maintenance history entry.
func (s *WorkOrderService) Complete(ctx context.Context, id string, req dto.CompleteWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	wo, err := s.orders.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if err := s.requireActorMayAct(wo, actor); err != nil {
		return nil, err
	}
	if wo.Status == models.StatusCompleted {
		return nil, appErrors.Clonef(appErrors.ErrAlreadyCompleted, "work order %s is already completed", wo.Number)
	}
	switch wo.Status {
	case models.StatusInProgress, models.StatusWaitingParts, models.StatusWaitingExternal:
	default:
		return nil, appErrors.Clonef(appErrors.ErrInvalidState, "work order %s must be in progress to complete, got %s", wo.Number, wo.Status)
	}
	solution := strings.TrimSpace(req.SolutionDescription)
	if solution == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "solution description is required")
	}

	technician := actor.UserID
	if user, err := s.users.FindByID(ctx, actor.UserID); err == nil {
		technician = user.FullName
	}

	now := time.Now().UTC()
	from := wo.Status

	if err := s.resolutions.Create(ctx, tx, &models.ResolutionRecord{
		WorkOrderID:         wo.ID,
		SolutionDescription: solution,
		FaultCode:           req.FaultCode,
		ResolvedByID:        actor.UserID,
		CompletedAt:         now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resolution record")
	}
	if err := s.orders.UpdateStatus(ctx, tx, repository.StatusUpdateParams{
		ID:          wo.ID,
		FromStatus:  from,
		ToStatus:    models.StatusCompleted,
		CompletedAt: &now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete work order")
	}
	if err := s.history.Create(ctx, tx, &models.StatusHistory{
		WorkOrderID: wo.ID,
		FromStatus:  from,
		ToStatus:    models.StatusCompleted,
		ChangedByID: actor.UserID,
		Notes:       completionHistoryNote,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status history")
	}
	if err := s.maintenance.Create(ctx, tx, &models.MaintenanceHistory{
		AssetID:           wo.AssetID,
		WorkOrderID:       wo.ID,
		WorkOrderTitle:    wo.Title,
		ResolutionSummary: solution,
		FaultCode:         req.FaultCode,
		Technician:        technician,
		CompletedAt:       now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record maintenance history")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit completion")
	}

	wo.Status = models.StatusCompleted
	wo.CompletedAt = &now

	s.metrics.StatusTransition(from, models.StatusCompleted)
	s.notifier.NotifyCompleted(wo.ID, wo.Title, s.recipients(wo, actor.UserID))
	return wo, nil
}

// UploadResolutionPhotos attaches photos to an existing resolution record.
// Runs after completion has committed, so storage failures can never roll
// back a successful completion.
func (s *WorkOrderService) UploadResolutionPhotos(ctx context.Context, id string, uploads []dto.ResolutionPhotoUpload, actor *models.JWTClaims) (*dto.ResolutionPhotosResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no photos provided")
	}

	wo, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if err := s.requireActorMayAct(wo, actor); err != nil {
		return nil, err
	}

	rec, err := s.resolutions.GetByWorkOrderID(ctx, wo.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNoResolutionRecord, "work order %s has not been completed yet", wo.Number)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resolution record")
	}

	for _, upload := range uploads {
		if int64(len(upload.Data)) > s.uploads.MaxFileSizeBytes {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "photo %s exceeds the %d byte limit", upload.Filename, s.uploads.MaxFileSizeBytes)
		}
		if !s.mimeAllowed(upload.ContentType) {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "photo %s has unsupported type %s", upload.Filename, upload.ContentType)
		}
	}

	stored := make([]string, 0, len(uploads))
	signed := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		relPath := fmt.Sprintf("resolutions/%s/%s%s", rec.ID, uuid.NewString(), filepath.Ext(upload.Filename))
		if _, err := s.photos.Save(relPath, upload.Data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
		}
		stored = append(stored, relPath)
		token, _, err := s.signer.Generate(rec.ID, relPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign photo url")
		}
		signed = append(signed, token)
	}

	if err := s.resolutions.AppendPhotos(ctx, wo.ID, stored); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach photos")
	}

	return &dto.ResolutionPhotosResponse{
		WorkOrderID: wo.ID,
		Photos:      stored,
		SignedURLs:  signed,
	}, nil
}

// DownloadResolutionPhoto validates a signed token and opens the referenced photo.
func (s *WorkOrderService) DownloadResolutionPhoto(ctx context.Context, workOrderID, token string, actor *models.JWTClaims) (*ResolutionPhotoDownload, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	wo, err := s.orders.GetByID(ctx, workOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", workOrderID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	rec, err := s.resolutions.GetByWorkOrderID(ctx, wo.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoResolutionRecord, "work order has no resolution record")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resolution")
	}

	recordID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if recordID != rec.ID {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "token does not match this work order")
	}

	file, err := s.photos.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "photo not found")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat photo")
	}
	mimeType := mime.TypeByExtension(filepath.Ext(relPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &ResolutionPhotoDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		SizeBytes: info.Size(),
		MimeType:  mimeType,
	}, nil
}

// Get fetches one work order.
func (s *WorkOrderService) Get(ctx context.Context, id string) (*models.WorkOrder, error) {
	wo, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	return wo, nil
}

// History returns the transition trail for a work order.
func (s *WorkOrderService) History(ctx context.Context, id string) ([]models.StatusHistory, error) {
	entries, err := s.history.ListByWorkOrder(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status history")
	}
	return entries, nil
}

// List returns work orders visible to the actor.
func (s *WorkOrderService) List(ctx context.Context, query dto.WorkOrderQuery, actor *models.JWTClaims) ([]models.WorkOrder, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.WorkOrderFilter{
		AssetID:  query.AssetID,
		Category: query.Category,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for _, raw := range query.Status {
		status := models.WorkOrderStatus(raw)
		if !models.ValidStatus(status) {
			return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "unknown status %q", raw)
		}
		filter.Status = append(filter.Status, status)
	}
	if query.Priority != "" {
		priority := models.WorkOrderPriority(query.Priority)
		if !models.ValidPriority(priority) {
			return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "unknown priority %q", query.Priority)
		}
		filter.Priority = &priority
	}

	switch {
	case actor.Role.Elevated():
		filter.AssignedToID = query.AssignedToID
		filter.CreatedByID = query.CreatedByID
	case actor.Role == models.RoleTechnician:
		filter.AssignedToID = actor.UserID
	default:
		filter.CreatedByID = actor.UserID
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list work orders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return orders, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Delete removes a work order; only its creator may do so and only while it
// is still PENDING.
func (s *WorkOrderService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	wo, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clonef(appErrors.ErrNotFound, "work order %s not found", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if wo.CreatedByID != actor.UserID {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "only the creator can delete a work order")
	}
	if wo.Status != models.StatusPending {
		return appErrors.Clonef(appErrors.ErrInvalidState, "work order %s is %s, only pending orders can be deleted", wo.Number, wo.Status)
	}
	deleted, err := s.orders.DeletePending(ctx, id, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete work order")
	}
	if !deleted {
		return appErrors.Clonef(appErrors.ErrInvalidState, "work order %s changed concurrently", wo.Number)
	}
	return nil
}

// AssetHistory returns the denormalized completion log for an asset.
func (s *WorkOrderService) AssetHistory(ctx context.Context, assetID string, limit, offset int) ([]models.MaintenanceHistory, error) {
	entries, err := s.maintenance.ListByAsset(ctx, assetID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance history")
	}
	return entries, nil
}

// requireActorMayAct allows the assigned technician and elevated roles.
func (s *WorkOrderService) requireActorMayAct(wo *models.WorkOrder, actor *models.JWTClaims) error {
	if actor.Role.Elevated() {
		return nil
	}
	if wo.AssignedToID != nil && *wo.AssignedToID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrPermissionDenied, "only the assigned technician or a supervisor can act on this work order")
}

// recipients lists the creator and assignee, skipping the actor.
func (s *WorkOrderService) recipients(wo *models.WorkOrder, actorID string) []string {
	seen := map[string]struct{}{actorID: {}}
	out := make([]string, 0, 2)
	for _, id := range []string{wo.CreatedByID, derefString(wo.AssignedToID)} {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *WorkOrderService) mimeAllowed(contentType string) bool {
	if len(s.uploads.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.uploads.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
