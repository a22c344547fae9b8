package handler

import (
	"context"
	"net/http"

	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AttachmentPresigner interface {
	CreatePresignedUpload(ctx context.Context, in services.PresignAttachmentInput) (services.PresignedAttachment, error)
}

type AttachmentHandler struct {
	service AttachmentPresigner
}

func NewAttachmentHandler(service AttachmentPresigner) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

func (h *AttachmentHandler) Presign(c *gin.Context) {
	var req httpdto.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uploaderID, ok := currentUser(c)
	if !ok {
		return
	}

	res, err := h.service.CreatePresignedUpload(c.Request.Context(), services.PresignAttachmentInput{
		UploaderID:  uploaderID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.PresignAttachmentResponse{
		UploadURL:     res.UploadURL,
		Key:           res.Key,
		Headers:       res.Headers,
		AttachmentURL: res.AttachmentURL,
	}))
}
