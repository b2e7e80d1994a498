package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wrenchworks/cmms-api/internal/dto"
	"github.com/wrenchworks/cmms-api/internal/service"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
	"github.com/wrenchworks/cmms-api/pkg/response"
)

// AssignmentRuleHandler exposes auto-assignment rule management endpoints.
type AssignmentRuleHandler struct {
	rules *service.AssignmentService
}

// NewAssignmentRuleHandler constructs AssignmentRuleHandler.
func NewAssignmentRuleHandler(rules *service.AssignmentService) *AssignmentRuleHandler {
	return &AssignmentRuleHandler{rules: rules}
}

// List godoc
// @Summary List assignment rules
// @Tags AssignmentRules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignment-rules [get]
func (h *AssignmentRuleHandler) List(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Create godoc
// @Summary Create assignment rule
// @Tags AssignmentRules
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssignmentRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /assignment-rules [post]
func (h *AssignmentRuleHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.rules.CreateRule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// Update godoc
// @Summary Update assignment rule
// @Tags AssignmentRules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body dto.UpdateAssignmentRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /assignment-rules/{id} [put]
func (h *AssignmentRuleHandler) Update(c *gin.Context) {
	var req dto.UpdateAssignmentRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.rules.UpdateRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete assignment rule
// @Tags AssignmentRules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Router /assignment-rules/{id} [delete]
func (h *AssignmentRuleHandler) Delete(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
