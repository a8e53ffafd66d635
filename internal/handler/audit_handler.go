package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parcel-audit/internal/audit"
	"parcel-audit/pkg/logger"
	"parcel-audit/pkg/response"
)

type AuditHandler struct {
	service audit.Service
}

func NewAuditHandler(service audit.Service) *AuditHandler {
	return &AuditHandler{service: service}
}

// RunAudit godoc
// @Summary Run an audit
// @Description Reconcile the current carrier and POS uploads and evaluate all audit rules
// @Tags audits
// @Produce json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/audits [post]
func (h *AuditHandler) RunAudit(c *gin.Context) {
	run, err := h.service.Run()
	if err != nil {
		if errors.Is(err, audit.ErrCarrierUploadRequired) {
			response.BadRequest(c, "Carrier upload required", err.Error())
			return
		}
		logger.GetLogger().WithError(err).Error("Audit run failed")
		response.InternalError(c, "Audit run failed", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Audit completed successfully", run)
}

// GetRun godoc
// @Summary Get an audit run
// @Description Full result of a completed audit run by ID
// @Tags audits
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/audits/{run_id} [get]
func (h *AuditHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	run, ok := h.service.GetRun(runID)
	if !ok {
		response.NotFound(c, "Audit run not found")
		return
	}

	response.Success(c, http.StatusOK, "Audit run retrieved successfully", run)
}
