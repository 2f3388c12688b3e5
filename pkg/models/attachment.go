package models

import "time"

// Attachment links a digital document to a case file. The document itself
// lives in external storage; only the linkage is tracked here, because the
// missing-digital-link alert pass needs to know which files have none.
type Attachment struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	Name       string    `json:"name"`
	StorageKey string    `json:"storage_key"`
	LinkedBy   string    `json:"linked_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkAttachmentRequest is the payload for linking a digital document.
type LinkAttachmentRequest struct {
	Name       string `json:"name" validate:"required"`
	StorageKey string `json:"storage_key" validate:"required"`
}

// AttachmentListResponse wraps an attachment listing.
type AttachmentListResponse struct {
	Items      []Attachment `json:"items"`
	TotalCount int          `json:"total_count"`
}
