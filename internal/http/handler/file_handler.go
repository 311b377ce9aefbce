package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/smartdom/crm-api/internal/service"
	"go.uber.org/zap"
)

type FileHandler struct {
	fileService *service.FileService
	maxUploadMB int64
	logger      *zap.Logger
}

func NewFileHandler(fileService *service.FileService, maxUploadMB int64, logger *zap.Logger) *FileHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &FileHandler{
		fileService: fileService,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// Upload godoc
// @Summary Attach file to object
// @Description Stores a document or photo for the object. The file is tagged with the object's current stage and its content type is detected from the data.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param file formData file true "File to upload"
// @Success 201 {object} domain.ObjectFileDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/files [post]
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	objectID, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}

	limit := h.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	dto, err := h.fileService.Upload(r.Context(), objectID, header.Filename, file)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to upload file")
		return
	}
	respondJSON(w, http.StatusCreated, dto)
}

// List godoc
// @Summary List object files
// @Tags Files
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Success 200 {array} domain.ObjectFileDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/files [get]
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	objectID, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	files, err := h.fileService.ListByObject(r.Context(), objectID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list files")
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// GetByID godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID" format(uuid)
// @Success 200 {object} domain.ObjectFileDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /files/{id} [get]
func (h *FileHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "file")
	if !ok {
		return
	}
	file, err := h.fileService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get file")
		return
	}
	respondJSON(w, http.StatusOK, file)
}

// Download godoc
// @Summary Download file
// @Tags Files
// @Produce application/octet-stream
// @Param id path string true "File ID" format(uuid)
// @Success 200 {file} file
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "file")
	if !ok {
		return
	}
	reader, file, err := h.fileService.Download(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to download file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("file download interrupted", zap.String("file_id", id.String()), zap.Error(err))
	}
}

// Delete godoc
// @Summary Delete file
// @Description Only the uploader or a manager can delete an attachment
// @Tags Files
// @Param id path string true "File ID" format(uuid)
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "file")
	if !ok {
		return
	}
	if err := h.fileService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
