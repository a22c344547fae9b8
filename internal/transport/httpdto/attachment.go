package httpdto

// PresignAttachmentRequest is used for POST /v1/attachments/presign
type PresignAttachmentRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required"`
}

type PresignAttachmentResponse struct {
	UploadURL     string            `json:"uploadUrl"`
	Key           string            `json:"key"`
	Headers       map[string]string `json:"headers,omitempty"`
	AttachmentURL string            `json:"attachmentUrl"`
}
