package file

import (
	"strings"
	"time"
)

// File is an uploaded blob stored by the API's media host.
type File struct {
	ID           string    `json:"file_id"`
	OriginalName string    `json:"original_name"`
	CloudURL     string    `json:"cloud_url"`
	CloudID      string    `json:"cloud_id"`
	FileType     string    `json:"file_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (f File) IsImage() bool { return strings.HasPrefix(f.FileType, "image/") }
func (f File) IsVideo() bool { return strings.HasPrefix(f.FileType, "video/") }

// Upload is the response of POST /upload.
type Upload struct {
	ID       string `json:"file_id"`
	CloudURL string `json:"cloud_url"`
}
