package domain

import "time"

// File types used to group uploads in the UI.
const (
	FileTypeDocument = "document"
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeOther    = "other"
)

type File struct {
	FileID      string    `json:"id" dynamodbav:"file_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	Type        string    `json:"type" dynamodbav:"type"`
	Extension   string    `json:"extension" dynamodbav:"extension"`
	ContentType string    `json:"contentType" dynamodbav:"content_type"`
	Size        int64     `json:"size" dynamodbav:"size"`
	Object      string    `json:"-" dynamodbav:"object"`
	Hash        string    `json:"hash" dynamodbav:"hash"`
	OwnerID     string    `json:"owner" dynamodbav:"owner_id"`
	AccountID   string    `json:"accountId" dynamodbav:"account_id"`
	Enable      bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}
