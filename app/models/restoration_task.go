package models

import "time"

// Task status constants. A task moves pending -> processing -> completed|failed
// and is never resurrected once terminal.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// RestorationTask tracks a single photo restoration job from upload to result.
type RestorationTask struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UUID         string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	FileName     string     `gorm:"type:varchar(255);not null" json:"file_name"`
	UploadPath   string     `gorm:"type:varchar(512);not null" json:"upload_path"`
	ResultPath   string     `gorm:"type:varchar(512);default:''" json:"result_path"`
	FaceEnhance  bool       `gorm:"default:true" json:"face_enhance"`
	Colorize     bool       `gorm:"default:false" json:"colorize"`
	Upscale      bool       `gorm:"default:true" json:"upscale"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	Stage        string     `gorm:"type:varchar(120);default:'Queued'" json:"stage"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	MetadataJSON string     `gorm:"type:longtext" json:"metadata_json"`
	CompletedAt  *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the task reached a final state.
func (t *RestorationTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
