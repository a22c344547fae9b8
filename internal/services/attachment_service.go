package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"benome-realtime/internal/domain/message"
	"benome-realtime/internal/storage"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
)

type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	FileURL(key string) string
}

// AttachmentService hands out presigned upload URLs. The attachment reference
// it returns is what clients later put into a message.
type AttachmentService struct {
	storage Presigner
}

func NewAttachmentService(storage Presigner) *AttachmentService {
	return &AttachmentService{storage: storage}
}

type PresignAttachmentInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignedAttachment struct {
	UploadURL     string
	Key           string
	Headers       map[string]string
	AttachmentURL string
}

func (s *AttachmentService) CreatePresignedUpload(ctx context.Context, in PresignAttachmentInput) (PresignedAttachment, error) {
	if s.storage == nil {
		return PresignedAttachment{}, errors.New("attachment storage is not configured")
	}
	if in.UploaderID == uuid.Nil || strings.TrimSpace(in.FileName) == "" {
		return PresignedAttachment{}, benome_errors.Validation("fileName is required")
	}
	if in.FileSize <= 0 || in.FileSize > storage.MaxAttachmentSize {
		return PresignedAttachment{}, benome_errors.Validation(fmt.Sprintf("fileSize must be between 1 and %d bytes", storage.MaxAttachmentSize))
	}
	if err := storage.ValidateContentType(in.ContentType); err != nil {
		return PresignedAttachment{}, benome_errors.Validation(err.Error())
	}

	key := buildObjectKey(in.UploaderID, uuid.New(), in.FileName)
	uploadURL, headers, err := s.storage.PresignPut(ctx, key, in.ContentType, in.FileSize)
	if err != nil {
		return PresignedAttachment{}, fmt.Errorf("presign attachment: %w", err)
	}

	ref := s.storage.FileURL(key)
	if len(ref) > message.MaxAttachmentRefLength {
		return PresignedAttachment{}, benome_errors.Validation("attachment reference is too long")
	}

	return PresignedAttachment{
		UploadURL:     uploadURL,
		Key:           key,
		Headers:       headers,
		AttachmentURL: ref,
	}, nil
}

func buildObjectKey(uploaderID, id uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	base := fmt.Sprintf("attachments/%s/%s", uploaderID.String(), id.String())
	if ext == "" || len(ext) > 10 {
		return base
	}
	return base + ext
}
