package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrFileNotFound is returned when an attachment does not exist
var ErrFileNotFound = errors.New("file not found")

// sniffLen is how much of an upload is read to detect its content type
const sniffLen = 3072

// FileService manages object attachments. Metadata is stored in the database and the
// content in file storage.
type FileService struct {
	fileRepo   *repository.FileRepository
	objectRepo *repository.ObjectRepository
	storage    storage.Storage
	publisher  realtime.Publisher
	logger     *zap.Logger
}

func NewFileService(
	fileRepo *repository.FileRepository,
	objectRepo *repository.ObjectRepository,
	storage storage.Storage,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		objectRepo: objectRepo,
		storage:    storage,
		publisher:  publisher,
		logger:     logger,
	}
}

// Upload stores data as an attachment of the object, tagged with the object's current stage.
// The content type is detected from the data, not taken from the client.
func (s *FileService) Upload(ctx context.Context, objectID uuid.UUID, filename string, data io.Reader) (*domain.ObjectFileDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	filename = strings.TrimSpace(filepath.Base(filepath.Clean("/" + filename)))
	if filename == "" || filename == "/" || filename == "." {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	obj, err := s.objectRepo.GetByID(ctx, objectID)
	if err != nil {
		return nil, mapObjectError(err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(data, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	storagePath, size, err := s.storage.Upload(ctx, filename, contentType, io.MultiReader(bytes.NewReader(head), data))
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	file := &domain.ObjectFile{
		ObjectID:    obj.ID,
		StageID:     obj.CurrentStage,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: storagePath,
		UploadedBy:  actor,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to clean up stored file after database error",
				zap.String("storagePath", storagePath),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	s.logger.Info("file attached",
		zap.String("fileID", file.ID.String()),
		zap.String("objectID", obj.ID.String()),
		zap.String("stage", string(obj.CurrentStage)),
		zap.String("contentType", contentType),
		zap.Int64("size", size),
	)
	s.publish(ctx, file.ID, realtime.ActionCreated)

	dto := mapper.ToObjectFileDTO(file)
	return &dto, nil
}

// ListByObject returns the attachments of an object, newest first
func (s *FileService) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.ObjectFileDTO, error) {
	if _, err := s.objectRepo.GetByID(ctx, objectID); err != nil {
		return nil, mapObjectError(err)
	}
	files, err := s.fileRepo.ListByObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	dtos := make([]domain.ObjectFileDTO, len(files))
	for i := range files {
		dtos[i] = mapper.ToObjectFileDTO(&files[i])
	}
	return dtos, nil
}

func (s *FileService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ObjectFileDTO, error) {
	file, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToObjectFileDTO(file)
	return &dto, nil
}

// Download opens the content of an attachment. The caller closes the reader.
func (s *FileService) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *domain.ObjectFileDTO, error) {
	file, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Download(ctx, file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("attachment content missing from storage",
				zap.String("fileID", id.String()),
				zap.String("storagePath", file.StoragePath),
			)
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to download file: %w", err)
	}
	dto := mapper.ToObjectFileDTO(file)
	return reader, &dto, nil
}

// Delete removes an attachment. Only the uploader, managers and admins may delete.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	file, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if file.UploadedBy != actor.ProfileID && !actor.HasAnyRole(domain.ProfileRoleManager) {
		return fmt.Errorf("%w: only the uploader or a manager can delete this file", ErrForbidden)
	}

	if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
		s.logger.Warn("failed to delete file from storage",
			zap.String("fileID", id.String()),
			zap.String("storagePath", file.StoragePath),
			zap.Error(err),
		)
	}
	if err := s.fileRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	s.logger.Info("file deleted", zap.String("fileID", id.String()), zap.String("actorID", actor.ProfileID.String()))
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

func (s *FileService) get(ctx context.Context, id uuid.UUID) (*domain.ObjectFile, error) {
	file, err := s.fileRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

func (s *FileService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityFile, id, action))
	}
}
