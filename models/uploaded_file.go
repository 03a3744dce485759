package models

import "time"

// UploadedFile tracks an image upload until a post references it. Rows whose
// ExpireAt has passed while still unattached are removed by the upload cleaner.
type UploadedFile struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	FilePath   string     `gorm:"size:1024;not null" json:"file_path"`
	URL        string     `gorm:"size:1024;not null;index" json:"url"`
	ExpireAt   time.Time  `gorm:"index" json:"expire_at"`
	AttachedAt *time.Time `json:"attached_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

