package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"planted-staging/internal/config"
	"planted-staging/internal/excel"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"
	"planted-staging/internal/moderation"
	"planted-staging/internal/staging"
	"planted-staging/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	staging    *staging.Service
	moderation *moderation.Engine
	cfg        *config.Config
	log        zerolog.Logger
}

func NewHandler(
	cfg *config.Config,
	stagingService *staging.Service,
	moderationEngine *moderation.Engine,
) *Handler {
	return &Handler{
		staging:    stagingService,
		moderation: moderationEngine,
		cfg:        cfg,
		log:        logger.Component("api"),
	}
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) UploadWorkbook(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}

	maxSize := h.cfg.Staging.MaxFileSize
	if maxSize > 0 && fileHeader.Size > maxSize {
		h.fail(c, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", errors.ErrFileTooLarge, fileHeader.Size, maxSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	var reader io.Reader = file
	if maxSize > 0 {
		reader = io.LimitReader(file, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.staging.Upload(c.Request.Context(), currentAdmin(c), fileHeader.Filename, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

func (h *Handler) ListStagedUploads(c *gin.Context) {
	filter := model.ListFilter{
		Status: model.UploadStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	page, err := h.staging.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondPage(c, page.Uploads, page.Pagination)
}

func (h *Handler) GetStagedUpload(c *gin.Context) {
	upload, err := h.staging.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, upload)
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.staging.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

func (h *Handler) GetSheet(c *gin.Context) {
	page, err := h.staging.Sheet(c.Request.Context(), c.Param("id"), c.Param("sheet"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondPage(c, gin.H{"summary": page.Summary, "items": page.Items}, page.Pagination)
}

func (h *Handler) GetRelationships(c *gin.Context) {
	page, err := h.staging.Relationships(c.Request.Context(), c.Param("id"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondPage(c, page.Relationships, page.Pagination)
}

func (h *Handler) GetEvents(c *gin.Context) {
	events, err := h.staging.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, events)
}

func (h *Handler) DownloadOriginal(c *gin.Context) {
	fileName, body, err := h.staging.Original(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, xlsxContentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", fileName),
	})
}

func (h *Handler) DownloadTemplate(c *gin.Context) {
	data, err := excel.BuildTemplate()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", excel.TemplateFileName))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) SetItemStatus(c *gin.Context) {
	var req model.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.moderation.SetItemStatus(c.Request.Context(), currentAdmin(c), c.Param("id"),
		model.SheetKey(req.Sheet), *req.RowIndex, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

func (h *Handler) EditItem(c *gin.Context) {
	var req model.EditItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.moderation.EditItem(c.Request.Context(), currentAdmin(c), c.Param("id"),
		model.SheetKey(req.Sheet), *req.RowIndex, req.Field, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	sheet := c.Query("sheet")
	index, err := strconv.Atoi(c.Query("rowIndex"))
	if sheet == "" || err != nil {
		badRequest(c, "query parameters sheet and rowIndex are required")
		return
	}

	resp, err := h.moderation.DeleteItem(c.Request.Context(), currentAdmin(c), c.Param("id"), model.SheetKey(sheet), index)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

func (h *Handler) BulkApprove(c *gin.Context) {
	var req model.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.moderation.BulkApprove(c.Request.Context(), currentAdmin(c), c.Param("id"), req.Mode, req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *Handler) BulkReject(c *gin.Context) {
	var req model.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.moderation.BulkReject(c.Request.Context(), currentAdmin(c), c.Param("id"), req.Mode, req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *Handler) DeleteStagedUpload(c *gin.Context) {
	if err := h.staging.Delete(c.Request.Context(), currentAdmin(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "staged upload deleted")
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
