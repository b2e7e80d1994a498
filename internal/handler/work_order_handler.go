package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wrenchworks/cmms-api/internal/dto"
	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/internal/service"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
	"github.com/wrenchworks/cmms-api/pkg/response"
)

type workOrderLifecycle interface {
	Create(ctx context.Context, req dto.CreateWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error)
	Assign(ctx context.Context, id string, req dto.AssignWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor *models.JWTClaims) (*models.WorkOrder, error)
	Complete(ctx context.Context, id string, req dto.CompleteWorkOrderRequest, actor *models.JWTClaims) (*models.WorkOrder, error)
	UploadResolutionPhotos(ctx context.Context, id string, uploads []dto.ResolutionPhotoUpload, actor *models.JWTClaims) (*dto.ResolutionPhotosResponse, error)
	DownloadResolutionPhoto(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.ResolutionPhotoDownload, error)
	Get(ctx context.Context, id string) (*models.WorkOrder, error)
	History(ctx context.Context, id string) ([]models.StatusHistory, error)
	List(ctx context.Context, query dto.WorkOrderQuery, actor *models.JWTClaims) ([]models.WorkOrder, *models.Pagination, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	AssetHistory(ctx context.Context, assetID string, limit, offset int) ([]models.MaintenanceHistory, error)
}

// WorkOrderHandler exposes work order lifecycle endpoints.
type WorkOrderHandler struct {
	workOrders workOrderLifecycle
}

// NewWorkOrderHandler constructs WorkOrderHandler.
func NewWorkOrderHandler(workOrders workOrderLifecycle) *WorkOrderHandler {
	return &WorkOrderHandler{workOrders: workOrders}
}

// Create godoc
// @Summary Create work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param payload body dto.CreateWorkOrderRequest true "Work order payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders [post]
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req dto.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wo, err := h.workOrders.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wo)
}

// List godoc
// @Summary List work orders
// @Tags WorkOrders
// @Produce json
// @Param status query []string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param assetId query string false "Asset filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /work-orders [get]
func (h *WorkOrderHandler) List(c *gin.Context) {
	var query dto.WorkOrderQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	orders, pagination, err := h.workOrders.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// Get godoc
// @Summary Get work order detail
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-orders/{id} [get]
func (h *WorkOrderHandler) Get(c *gin.Context) {
	wo, err := h.workOrders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

// History godoc
// @Summary Get work order status history
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/history [get]
func (h *WorkOrderHandler) History(c *gin.Context) {
	entries, err := h.workOrders.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Assign godoc
// @Summary Assign work order to a technician
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.AssignWorkOrderRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id}/assign [put]
func (h *WorkOrderHandler) Assign(c *gin.Context) {
	var req dto.AssignWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wo, err := h.workOrders.Assign(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

// UpdateStatus godoc
// @Summary Transition work order status
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.UpdateStatusRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id}/status [put]
func (h *WorkOrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wo, err := h.workOrders.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

// Complete godoc
// @Summary Complete work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.CompleteWorkOrderRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id}/complete [post]
func (h *WorkOrderHandler) Complete(c *gin.Context) {
	var req dto.CompleteWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wo, err := h.workOrders.Complete(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

// UploadPhotos godoc
// @Summary Upload resolution photos
// @Tags WorkOrders
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Work order ID"
// @Param photos formData file true "Photo files"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id}/photos [post]
func (h *WorkOrderHandler) UploadPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form"))
		return
	}
	files := form.File["photos"]
	uploads := make([]dto.ResolutionPhotoUpload, 0, len(files))
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		uploads = append(uploads, dto.ResolutionPhotoUpload{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	res, err := h.workOrders.UploadResolutionPhotos(c.Request.Context(), c.Param("id"), uploads, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// DownloadPhoto godoc
// @Summary Download a resolution photo via signed token
// @Tags WorkOrders
// @Produce octet-stream
// @Param id path string true "Work order ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /work-orders/{id}/photos/download [get]
func (h *WorkOrderHandler) DownloadPhoto(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	dl, err := h.workOrders.DownloadResolutionPhoto(c.Request.Context(), c.Param("id"), token, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, dl.SizeBytes, dl.MimeType, dl.File, nil)
}

// Delete godoc
// @Summary Delete a pending work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id} [delete]
func (h *WorkOrderHandler) Delete(c *gin.Context) {
	if err := h.workOrders.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssetHistory godoc
// @Summary List maintenance history for an asset
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /assets/{id}/history [get]
func (h *WorkOrderHandler) AssetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	entries, err := h.workOrders.AssetHistory(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
