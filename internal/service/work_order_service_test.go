package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wrenchworks/cmms-api/internal/dto"
	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/internal/repository"
	"github.com/wrenchworks/cmms-api/pkg/config"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
)

var errTokenTampered = errors.New("token tampered")

type workOrderStoreStub struct {
	orders      map[string]*models.WorkOrder
	created     *models.WorkOrder
	statusCalls []repository.StatusUpdateParams
	assignedTo  string
	deleted     bool
}

func newWorkOrderStoreStub() *workOrderStoreStub {
	return &workOrderStoreStub{orders: make(map[string]*models.WorkOrder)}
}

func (s *workOrderStoreStub) Create(_ context.Context, _ sqlx.ExtContext, wo *models.WorkOrder) error {
	if wo.ID == "" {
		wo.ID = "wo-1"
	}
	s.created = wo
	s.orders[wo.ID] = wo
	return nil
}

func (s *workOrderStoreStub) GetByID(_ context.Context, id string) (*models.WorkOrder, error) {
	wo, ok := s.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return wo, nil
}

func (s *workOrderStoreStub) GetByIDForUpdate(_ context.Context, _ *sqlx.Tx, id string) (*models.WorkOrder, error) {
	return s.GetByID(context.Background(), id)
}

func (s *workOrderStoreStub) UpdateStatus(_ context.Context, _ sqlx.ExtContext, params repository.StatusUpdateParams) error {
	s.statusCalls = append(s.statusCalls, params)
	return nil
}

func (s *workOrderStoreStub) UpdateAssignment(_ context.Context, _ sqlx.ExtContext, _ string, assigneeID string) error {
	s.assignedTo = assigneeID
	return nil
}

func (s *workOrderStoreStub) DeletePending(_ context.Context, id, _ string) (bool, error) {
	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	s.deleted = true
	return true, nil
}

func (s *workOrderStoreStub) List(_ context.Context, _ models.WorkOrderFilter) ([]models.WorkOrder, int, error) {
	out := make([]models.WorkOrder, 0, len(s.orders))
	for _, wo := range s.orders {
		out = append(out, *wo)
	}
	return out, len(out), nil
}

type historyStoreStub struct {
	entries []models.StatusHistory
}

func (s *historyStoreStub) Create(_ context.Context, _ sqlx.ExtContext, entry *models.StatusHistory) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *historyStoreStub) ListByWorkOrder(_ context.Context, workOrderID string) ([]models.StatusHistory, error) {
	var out []models.StatusHistory
	for _, e := range s.entries {
		if e.WorkOrderID == workOrderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type resolutionStoreStub struct {
	records map[string]*models.ResolutionRecord
	photos  []string
}

func newResolutionStoreStub() *resolutionStoreStub {
	return &resolutionStoreStub{records: make(map[string]*models.ResolutionRecord)}
}

func (s *resolutionStoreStub) Create(_ context.Context, _ sqlx.ExtContext, rec *models.ResolutionRecord) error {
	if rec.ID == "" {
		rec.ID = "res-1"
	}
	s.records[rec.WorkOrderID] = rec
	return nil
}

func (s *resolutionStoreStub) GetByWorkOrderID(_ context.Context, workOrderID string) (*models.ResolutionRecord, error) {
	rec, ok := s.records[workOrderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (s *resolutionStoreStub) AppendPhotos(_ context.Context, workOrderID string, photos []string) error {
	if _, ok := s.records[workOrderID]; !ok {
		return sql.ErrNoRows
	}
	s.photos = append(s.photos, photos...)
	return nil
}

type maintenanceStoreStub struct {
	entries []models.MaintenanceHistory
}

func (s *maintenanceStoreStub) Create(_ context.Context, _ sqlx.ExtContext, entry *models.MaintenanceHistory) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *maintenanceStoreStub) ListByAsset(_ context.Context, assetID string, _, _ int) ([]models.MaintenanceHistory, error) {
	var out []models.MaintenanceHistory
	for _, e := range s.entries {
		if e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out, nil
}

type assetReaderStub struct {
	assets map[string]*models.Asset
}

func (s *assetReaderStub) FindByID(_ context.Context, id string) (*models.Asset, error) {
	asset, ok := s.assets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return asset, nil
}

type userReaderStub struct {
	users map[string]*models.User
}

func (s *userReaderStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type allocatorStub struct {
	number string
	err    error
	calls  int
}

func (s *allocatorStub) Generate(_ context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.number, nil
}

type matcherStub struct {
	assignee *string
	err      error
	attrs    models.WorkOrderAttributes
}

func (s *matcherStub) Match(_ context.Context, attrs models.WorkOrderAttributes) (*string, error) {
	s.attrs = attrs
	if s.err != nil {
		return nil, s.err
	}
	return s.assignee, nil
}

type notifierRecorder struct {
	assigned  []string
	changed   [][]string
	completed [][]string
}

func (n *notifierRecorder) NotifyAssigned(_, assigneeID, _ string) {
	n.assigned = append(n.assigned, assigneeID)
}

func (n *notifierRecorder) NotifyStatusChanged(_ string, _, _ models.WorkOrderStatus, _ string, recipients []string) {
	n.changed = append(n.changed, recipients)
}

func (n *notifierRecorder) NotifyCompleted(_, _ string, recipients []string) {
	n.completed = append(n.completed, recipients)
}

type photoStoreStub struct {
	saved []string
	dir   string
}

func (s *photoStoreStub) Save(filename string, data []byte) (string, error) {
	s.saved = append(s.saved, filename)
	if s.dir != "" {
		_ = os.WriteFile(filepath.Join(s.dir, filepath.Base(filename)), data, 0o644)
	}
	return filename, nil
}

func (s *photoStoreStub) Open(filename string) (*os.File, error) {
	if s.dir == "" {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.dir, filepath.Base(filename)))
}

type signerStub struct {
	parseRecordID string
	parseRelPath  string
	parseErr      error
}

func (*signerStub) Generate(_, relPath string) (string, time.Time, error) {
	return "https://signed.example/" + relPath, time.Now().Add(time.Hour), nil
}

func (s *signerStub) Parse(_ string, _ bool) (string, string, time.Time, error) {
	if s.parseErr != nil {
		return "", "", time.Time{}, s.parseErr
	}
	return s.parseRecordID, s.parseRelPath, time.Now().Add(time.Hour), nil
}

type lifecycleFixture struct {
	orders      *workOrderStoreStub
	history     *historyStoreStub
	resolutions *resolutionStoreStub
	maintenance *maintenanceStoreStub
	assets      *assetReaderStub
	users       *userReaderStub
	allocator   *allocatorStub
	matcher     *matcherStub
	notifier    *notifierRecorder
	photos      *photoStoreStub
	signer      *signerStub
	mock        sqlmock.Sqlmock
	svc         *WorkOrderService
}

func newLifecycleFixture(t *testing.T, assignCfg config.AssignmentConfig) *lifecycleFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	f := &lifecycleFixture{
		orders:      newWorkOrderStoreStub(),
		history:     &historyStoreStub{},
		resolutions: newResolutionStoreStub(),
		maintenance: &maintenanceStoreStub{},
		assets: &assetReaderStub{assets: map[string]*models.Asset{
			"asset-1": {ID: "asset-1", Name: "Conveyor A", Type: "CONVEYOR", Location: "Hall 2"},
		}},
		users: &userReaderStub{users: map[string]*models.User{
			"tech-1": {ID: "tech-1", FullName: "Dana Reyes", Role: models.RoleTechnician},
		}},
		allocator: &allocatorStub{number: "MO202600042"},
		matcher:   &matcherStub{},
		notifier:  &notifierRecorder{},
		photos:    &photoStoreStub{},
		signer:    &signerStub{},
		mock:      mock,
	}
	f.svc = NewWorkOrderService(WorkOrderServiceDeps{
		Orders:      f.orders,
		History:     f.history,
		Resolutions: f.resolutions,
		Maintenance: f.maintenance,
		Assets:      f.assets,
		Users:       f.users,
		Allocator:   f.allocator,
		Matcher:     f.matcher,
		Notifier:    f.notifier,
		Photos:      f.photos,
		Signer:      f.signer,
		Tx:          sqlx.NewDb(rawDB, "sqlmock"),
	}, assignCfg, config.UploadsConfig{
		MaxFileSizeBytes: 1 << 20,
		AllowedMIMEs:     []string{"image/jpeg", "image/png"},
	}, zap.NewNop())
	return f
}

func (f *lifecycleFixture) seedOrder(wo models.WorkOrder) *models.WorkOrder {
	f.orders.orders[wo.ID] = &wo
	return &wo
}

func technicianClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTechnician}
}

func supervisorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor}
}

func employeeClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleEmployee}
}

func TestWorkOrderCreateAutoAssigns(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.matcher.assignee = &assignee

	wo, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "Conveyor jammed",
		Description: "Belt stalls under load",
		Category:    "MECHANICAL",
		Location:    "Hall 2",
		Priority:    models.PriorityHigh,
		AssetID:     "asset-1",
	}, employeeClaims("emp-1"))
	require.NoError(t, err)

	assert.Equal(t, "MO202600042", wo.Number)
	assert.Equal(t, models.StatusPending, wo.Status)
	require.NotNil(t, wo.AssignedToID)
	assert.Equal(t, "tech-1", *wo.AssignedToID)
	assert.Equal(t, "CONVEYOR", f.matcher.attrs.AssetType)
	assert.Equal(t, []string{"tech-1"}, f.notifier.assigned)
}

func TestWorkOrderCreateUnassignedWhenNoRuleMatches(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})

	wo, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "Leaking valve",
		Description: "Slow drip at fitting",
		Category:    "PLUMBING",
		Priority:    models.PriorityLow,
		AssetID:     "asset-1",
	}, employeeClaims("emp-1"))
	require.NoError(t, err)

	assert.Nil(t, wo.AssignedToID)
	assert.Empty(t, f.notifier.assigned)
}

func TestWorkOrderCreateMatcherErrorTolerated(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{FailCreateOnError: false})
	f.matcher.err = assert.AnError

	wo, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "Panel fault",
		Description: "Breaker trips",
		Category:    "ELECTRICAL",
		Priority:    models.PriorityUrgent,
		AssetID:     "asset-1",
	}, employeeClaims("emp-1"))
	require.NoError(t, err)
	assert.Nil(t, wo.AssignedToID)
}

func TestWorkOrderCreateMatcherErrorFailsWhenConfigured(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{FailCreateOnError: true})
	f.matcher.err = assert.AnError

	_, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "Panel fault",
		Description: "Breaker trips",
		Category:    "ELECTRICAL",
		Priority:    models.PriorityUrgent,
		AssetID:     "asset-1",
	}, employeeClaims("emp-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, f.orders.created)
}

func TestWorkOrderCreateRejectsUnknownPriority(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})

	_, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "x",
		Description: "y",
		Category:    "z",
		Priority:    models.WorkOrderPriority("ASAP"),
		AssetID:     "asset-1",
	}, employeeClaims("emp-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 0, f.allocator.calls)
}

func TestWorkOrderCreateUnknownAsset(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})

	_, err := f.svc.Create(context.Background(), dto.CreateWorkOrderRequest{
		Title:       "x",
		Description: "y",
		Category:    "z",
		Priority:    models.PriorityLow,
		AssetID:     "asset-missing",
	}, employeeClaims("emp-1"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestWorkOrderAssignRequiresElevatedRole(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})

	_, err := f.svc.Assign(context.Background(), "wo-1", dto.AssignWorkOrderRequest{AssignedToID: "tech-1"}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
}

func TestWorkOrderAssignStartsOrder(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Number: "MO202600001", Title: "Pump noise", Status: models.StatusPending, CreatedByID: "emp-1"})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	wo, err := f.svc.Assign(context.Background(), "wo-1", dto.AssignWorkOrderRequest{AssignedToID: "tech-1"}, supervisorClaims())
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, wo.Status)
	require.NotNil(t, wo.StartedAt)
	assert.Equal(t, "tech-1", f.orders.assignedTo)
	require.Len(t, f.history.entries, 1)
	assert.Equal(t, models.StatusPending, f.history.entries[0].FromStatus)
	assert.Equal(t, models.StatusInProgress, f.history.entries[0].ToStatus)
	assert.Contains(t, f.history.entries[0].Notes, "Dana Reyes")
	assert.Equal(t, []string{"tech-1"}, f.notifier.assigned)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWorkOrderAssignRejectsNonPending(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusInProgress, CreatedByID: "emp-1"})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Assign(context.Background(), "wo-1", dto.AssignWorkOrderRequest{AssignedToID: "tech-1"}, supervisorClaims())
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestWorkOrderUpdateStatusPermissionCheckedBeforeTransition(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	// An uninvolved caller gets a permission error even though the
	// requested transition would also be rejected.
	_, err := f.svc.UpdateStatus(context.Background(), "wo-1", dto.UpdateStatusRequest{Status: models.StatusInProgress}, technicianClaims("tech-2"))
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
	assert.NotErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestWorkOrderUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusPending, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.UpdateStatus(context.Background(), "wo-1", dto.UpdateStatusRequest{Status: models.StatusCompleted}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Empty(t, f.history.entries)
}

func TestWorkOrderUpdateStatusRejectsUnassignedStart(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusPending, CreatedByID: "emp-1"})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.UpdateStatus(context.Background(), "wo-1", dto.UpdateStatusRequest{Status: models.StatusInProgress}, supervisorClaims())
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestWorkOrderUpdateStatusStartedAtSetOnce(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	started := time.Now().Add(-2 * time.Hour).UTC()
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusWaitingParts, CreatedByID: "emp-1", AssignedToID: &assignee, StartedAt: &started})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	wo, err := f.svc.UpdateStatus(context.Background(), "wo-1", dto.UpdateStatusRequest{Status: models.StatusInProgress, Notes: "parts arrived"}, technicianClaims("tech-1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, wo.Status)
	assert.True(t, wo.StartedAt.Equal(started))
	require.Len(t, f.orders.statusCalls, 1)
	assert.Nil(t, f.orders.statusCalls[0].StartedAt)
	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "parts arrived", f.history.entries[0].Notes)
}

func TestWorkOrderUpdateStatusNotifiesCreatorAndAssignee(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	started := time.Now().UTC()
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusInProgress, CreatedByID: "emp-1", AssignedToID: &assignee, StartedAt: &started})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.UpdateStatus(context.Background(), "wo-1", dto.UpdateStatusRequest{Status: models.StatusWaitingParts}, supervisorClaims())
	require.NoError(t, err)

	require.Len(t, f.notifier.changed, 1)
	assert.ElementsMatch(t, []string{"emp-1", "tech-1"}, f.notifier.changed[0])
}

func TestWorkOrderCompleteHappyPath(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	started := time.Now().Add(-time.Hour).UTC()
	f.seedOrder(models.WorkOrder{ID: "wo-1", Number: "MO202600007", Title: "Pump noise", AssetID: "asset-1", Status: models.StatusInProgress, CreatedByID: "emp-1", AssignedToID: &assignee, StartedAt: &started})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	fault := "BRG-07"
	wo, err := f.svc.Complete(context.Background(), "wo-1", dto.CompleteWorkOrderRequest{
		SolutionDescription: "  Replaced worn bearing  ",
		FaultCode:           &fault,
	}, technicianClaims("tech-1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, wo.Status)
	require.NotNil(t, wo.CompletedAt)

	rec, err := f.resolutions.GetByWorkOrderID(context.Background(), "wo-1")
	require.NoError(t, err)
	assert.Equal(t, "Replaced worn bearing", rec.SolutionDescription)
	assert.Equal(t, "tech-1", rec.ResolvedByID)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, completionHistoryNote, f.history.entries[0].Notes)

	require.Len(t, f.maintenance.entries, 1)
	assert.Equal(t, "asset-1", f.maintenance.entries[0].AssetID)
	assert.Equal(t, "Dana Reyes", f.maintenance.entries[0].Technician)
	assert.Equal(t, "Replaced worn bearing", f.maintenance.entries[0].ResolutionSummary)

	require.Len(t, f.notifier.completed, 1)
	assert.Equal(t, []string{"emp-1"}, f.notifier.completed[0])
}

func TestWorkOrderCompleteTwiceIsConflict(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusInProgress, AssetID: "asset-1", CreatedByID: "emp-1", AssignedToID: &assignee})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Complete(context.Background(), "wo-1", dto.CompleteWorkOrderRequest{SolutionDescription: "fixed"}, technicianClaims("tech-1"))
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), "wo-1", dto.CompleteWorkOrderRequest{SolutionDescription: "fixed again"}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCompleted)
	require.Len(t, f.maintenance.entries, 1)
}

func TestWorkOrderCompleteFromPendingIsInvalidState(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusPending, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Complete(context.Background(), "wo-1", dto.CompleteWorkOrderRequest{SolutionDescription: "fixed"}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestWorkOrderCompleteRejectsBlankSolution(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusInProgress, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Complete(context.Background(), "wo-1", dto.CompleteWorkOrderRequest{SolutionDescription: "   "}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.resolutions.records)
}

func TestWorkOrderUploadPhotosRequiresResolution(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusInProgress, CreatedByID: "emp-1", AssignedToID: &assignee})

	_, err := f.svc.UploadResolutionPhotos(context.Background(), "wo-1", []dto.ResolutionPhotoUpload{
		{Filename: "before.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
	}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrNoResolutionRecord)
}

func TestWorkOrderUploadPhotosStoresAndSigns(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.resolutions.records["wo-1"] = &models.ResolutionRecord{ID: "res-1", WorkOrderID: "wo-1"}

	resp, err := f.svc.UploadResolutionPhotos(context.Background(), "wo-1", []dto.ResolutionPhotoUpload{
		{Filename: "before.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
		{Filename: "after.png", ContentType: "image/png", Data: []byte("png")},
	}, technicianClaims("tech-1"))
	require.NoError(t, err)

	assert.Len(t, resp.Photos, 2)
	assert.Len(t, resp.SignedURLs, 2)
	assert.Len(t, f.photos.saved, 2)
	assert.Equal(t, resp.Photos, f.resolutions.photos)
}

func TestWorkOrderUploadPhotosRejectsBadMIME(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.resolutions.records["wo-1"] = &models.ResolutionRecord{ID: "res-1", WorkOrderID: "wo-1"}

	_, err := f.svc.UploadResolutionPhotos(context.Background(), "wo-1", []dto.ResolutionPhotoUpload{
		{Filename: "report.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
	}, technicianClaims("tech-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.photos.saved)
}

func TestWorkOrderDownloadPhotoServesFile(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.photos.dir = t.TempDir()
	assignee := "tech-1"
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1", AssignedToID: &assignee})
	f.resolutions.records["wo-1"] = &models.ResolutionRecord{ID: "res-1", WorkOrderID: "wo-1"}

	relPath := "resolutions/res-1/photo.jpg"
	_, err := f.photos.Save(relPath, []byte("jpg-bytes"))
	require.NoError(t, err)
	f.signer.parseRecordID = "res-1"
	f.signer.parseRelPath = relPath

	dl, err := f.svc.DownloadResolutionPhoto(context.Background(), "wo-1", "tok", employeeClaims("emp-1"))
	require.NoError(t, err)
	defer dl.File.Close()

	assert.Equal(t, "photo.jpg", dl.Filename)
	assert.Equal(t, int64(len("jpg-bytes")), dl.SizeBytes)
	assert.Equal(t, "image/jpeg", dl.MimeType)
}

func TestWorkOrderDownloadPhotoRejectsBadToken(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1"})
	f.resolutions.records["wo-1"] = &models.ResolutionRecord{ID: "res-1", WorkOrderID: "wo-1"}
	f.signer.parseErr = errTokenTampered

	_, err := f.svc.DownloadResolutionPhoto(context.Background(), "wo-1", "tok", employeeClaims("emp-1"))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestWorkOrderDownloadPhotoRejectsForeignToken(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusCompleted, CreatedByID: "emp-1"})
	f.resolutions.records["wo-1"] = &models.ResolutionRecord{ID: "res-1", WorkOrderID: "wo-1"}
	f.signer.parseRecordID = "res-other"
	f.signer.parseRelPath = "resolutions/res-other/photo.jpg"

	_, err := f.svc.DownloadResolutionPhoto(context.Background(), "wo-1", "tok", employeeClaims("emp-1"))
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
}

func TestWorkOrderDeleteOnlyCreatorAndPending(t *testing.T) {
	f := newLifecycleFixture(t, config.AssignmentConfig{})
	f.seedOrder(models.WorkOrder{ID: "wo-1", Status: models.StatusPending, CreatedByID: "emp-1"})

	err := f.svc.Delete(context.Background(), "wo-1", employeeClaims("emp-2"))
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)

	f.seedOrder(models.WorkOrder{ID: "wo-2", Status: models.StatusInProgress, CreatedByID: "emp-1"})
	err = f.svc.Delete(context.Background(), "wo-2", employeeClaims("emp-1"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	err = f.svc.Delete(context.Background(), "wo-1", employeeClaims("emp-1"))
	require.NoError(t, err)
	assert.True(t, f.orders.deleted)
}
