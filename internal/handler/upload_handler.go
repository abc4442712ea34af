package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openlearn/lms-api/internal/service"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
	"github.com/openlearn/lms-api/pkg/response"
	"github.com/openlearn/lms-api/pkg/storage"
)

// UploadHandler stores lesson files on disk and serves them back through
// short-lived signed URLs.
type UploadHandler struct {
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	lessons      *service.LessonService
	maxBytes     int64
	allowedMIMEs map[string]bool
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner, lessons *service.LessonService, maxBytes int64, allowedMIMEs []string) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	allowed := make(map[string]bool, len(allowedMIMEs))
	for _, mime := range allowedMIMEs {
		allowed[strings.ToLower(mime)] = true
	}
	return &UploadHandler{store: store, signer: signer, lessons: lessons, maxBytes: maxBytes, allowedMIMEs: allowed}
}

// Upload godoc
// @Summary Upload a content file
// @Description Stores the file and returns its relative URL for lesson or attachment payloads
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	if header.Size > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit"))
		return
	}
	if len(h.allowedMIMEs) > 0 {
		contentType := strings.ToLower(header.Header.Get("Content-Type"))
		if !h.allowedMIMEs[contentType] {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed"))
			return
		}
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	ext := strings.ToLower(filepath.Ext(header.Filename))
	relPath := filepath.Join(time.Now().UTC().Format("2006/01"), uuid.NewString()+ext)
	stored, err := h.store.SaveStream(relPath, io.LimitReader(src, h.maxBytes))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	response.Created(c, gin.H{
		"file_url":  stored,
		"file_size": header.Size,
		"file_type": header.Header.Get("Content-Type"),
	})
}

// DownloadLink godoc
// @Summary Get a signed download URL for an attachment
// @Description Requires content access and the lesson to allow downloads
// @Tags Files
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attachments/{id}/download [get]
func (h *UploadHandler) DownloadLink(c *gin.Context) {
	attachment, _, err := h.lessons.GetAttachment(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	token, expiresAt, err := h.signer.Generate(attachment.ID, attachment.FileURL)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download"))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/files?token=%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// ServeFile godoc
// @Summary Download a file via a signed token
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /files [get]
func (h *UploadHandler) ServeFile(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, http.StatusForbidden, "invalid or expired download token"))
		return
	}

	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		// Response already streaming, nothing safe left to send.
		_ = c.Error(err)
	}
}
