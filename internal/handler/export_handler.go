package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parcel-audit/internal/audit"
	"parcel-audit/internal/export"
	"parcel-audit/pkg/logger"
	"parcel-audit/pkg/response"
)

type ExportHandler struct {
	service audit.Service
}

func NewExportHandler(service audit.Service) *ExportHandler {
	return &ExportHandler{service: service}
}

// ExportCSV godoc
// @Summary Export one result view as CSV
// @Description Download a view of an audit run as a date-stamped CSV file
// @Tags exports
// @Produce text/csv
// @Param run_id path string true "Run ID"
// @Param view query string false "Result view" Enums(discrepancies, membership, late_deliveries, charge_issues)
// @Success 200 {string} string "CSV content"
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/audits/{run_id}/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	run, ok := h.service.GetRun(c.Param("run_id"))
	if !ok {
		response.NotFound(c, "Audit run not found")
		return
	}

	filename, data, err := export.CSV(run, c.Query("view"))
	if err != nil {
		response.BadRequest(c, "Invalid export view", err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportPDF godoc
// @Summary Export the full report as PDF
// @Description Download the paginated audit report for a run
// @Tags exports
// @Produce application/pdf
// @Param run_id path string true "Run ID"
// @Success 200 {string} string "PDF content"
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/audits/{run_id}/export/pdf [get]
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	run, ok := h.service.GetRun(c.Param("run_id"))
	if !ok {
		response.NotFound(c, "Audit run not found")
		return
	}

	filename, data, err := export.PDF(run)
	if err != nil {
		logger.GetLogger().WithError(err).Error("PDF export failed")
		response.InternalError(c, "PDF export failed", err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
