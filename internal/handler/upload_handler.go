package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"parcel-audit/internal/domain"
	"parcel-audit/internal/store"
	"parcel-audit/internal/upload"
	"parcel-audit/pkg/logger"
	"parcel-audit/pkg/response"
)

type UploadHandler struct {
	service upload.Service
}

func NewUploadHandler(service upload.Service) *UploadHandler {
	return &UploadHandler{service: service}
}

// Upload godoc
// @Summary Upload source files into a slot
// @Description Replace the carrier or POS upload slot with one or more CSV/XLSX files
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param slot path string true "Upload slot" Enums(carrier, pos)
// @Param files formData file true "Export files (repeatable)"
// @Param carrier formData string false "Carrier label" Enums(UPS, FEDEX)
// @Param layout formData string false "Header layout" Enums(auto, firstline, fixed9)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/uploads/{slot} [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	kind, ok := domain.ParseSourceKind(c.Param("slot"))
	if !ok {
		response.BadRequest(c, "Unknown upload slot", "Use carrier or pos")
		return
	}

	carrier, ok := domain.ParseCarrier(c.PostForm("carrier"))
	if !ok {
		response.BadRequest(c, "Unknown carrier", "Use UPS or FEDEX, or omit to auto-detect")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Invalid multipart form", err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.BadRequest(c, "No files uploaded", "Attach one or more files in the files field")
		return
	}

	// A file that cannot be read contributes nothing; the rest of the
	// batch still loads.
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			logger.GetLogger().WithError(err).WithField("file", fh.Filename).Warn("Failed to open uploaded file")
			continue
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			logger.GetLogger().WithError(err).WithField("file", fh.Filename).Warn("Failed to read uploaded file")
			continue
		}
		files = append(files, upload.File{Name: fh.Filename, Content: content})
	}

	summary, err := h.service.Store(kind, carrier, c.PostForm("layout"), files)
	if err != nil {
		if errors.Is(err, store.ErrStaleUpload) {
			response.Error(c, http.StatusConflict, "STALE_UPLOAD", "Upload superseded by a newer one", err.Error())
			return
		}
		response.BadRequest(c, "Upload rejected", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Upload stored successfully", summary)
}

// List godoc
// @Summary List upload slots
// @Description Current upload state per slot: files, record counts, sequence
// @Tags uploads
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	response.Success(c, http.StatusOK, "Upload slots retrieved successfully", h.service.List())
}

// Clear godoc
// @Summary Clear an upload slot
// @Description Drop the files currently held in a slot
// @Tags uploads
// @Produce json
// @Param slot path string true "Upload slot" Enums(carrier, pos)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/uploads/{slot} [delete]
func (h *UploadHandler) Clear(c *gin.Context) {
	kind, ok := domain.ParseSourceKind(c.Param("slot"))
	if !ok {
		response.BadRequest(c, "Unknown upload slot", "Use carrier or pos")
		return
	}
	if !h.service.Clear(kind) {
		response.NotFound(c, "Slot is already empty")
		return
	}
	response.Success(c, http.StatusOK, "Upload slot cleared", nil)
}
