package registry

import (
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
)

// SchemaVersion current version of the registry document
const SchemaVersion = 1

// FileRecord tracked metadata for one logical uploaded file
type FileRecord struct {
	ID           string       `json:"id" gorm:"primaryKey;size:64"`
	Hash         string       `json:"hash" gorm:"size:64;index"`
	LegacyID     string       `json:"legacy_id,omitempty" gorm:"size:64"`
	OriginalName string       `json:"original_name" gorm:"size:512;index"`
	OriginalPath string       `json:"original_path" gorm:"size:2048"`
	FileName     string       `json:"file_name" gorm:"size:1024"`
	Status       types.Status `json:"status" gorm:"size:16;index"`
	Analysis     string       `json:"analysis,omitempty" gorm:"type:text"`
	Error        string       `json:"error,omitempty" gorm:"type:text"`
	Size         int64        `json:"size"`
	Generation   int          `json:"generation"`
	CreatedAt    time.Time    `json:"created_at"`
	ModifiedAt   time.Time    `json:"modified_at"`
	MovedAt      time.Time    `json:"moved_at"`
}

// TableName gorm table
func (FileRecord) TableName() string {
	return "file_records"
}

// Clone returns an independent copy
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Document the full persisted registry
type Document struct {
	SchemaVersion int                    `json:"schema_version"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Files         map[string]*FileRecord `json:"files"`
}

// NewDocument returns an empty document at the current version
func NewDocument() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Files:         make(map[string]*FileRecord),
	}
}

// Clone deep-copies the document
func (d *Document) Clone() *Document {
	c := &Document{
		SchemaVersion: d.SchemaVersion,
		UpdatedAt:     d.UpdatedAt,
		Files:         make(map[string]*FileRecord, len(d.Files)),
	}
	for id, rec := range d.Files {
		c.Files[id] = rec.Clone()
	}
	return c
}
