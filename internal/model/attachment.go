package model

import "time"

// Attachment is the stored metadata for one file attached to a
// communication. The bytes live in the blob store under StoragePath.
type Attachment struct {
	ID              int64     `json:"id"`
	CommunicationID int64     `json:"communication_id"`
	Filename        string    `json:"filename"`
	ContentType     string    `json:"content_type"`
	SizeBytes       int64     `json:"size_bytes"`
	StoragePath     string    `json:"storage_path"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "communication_attachments" }
