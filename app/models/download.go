package models

import "time"

// DownloadDateFormat is the calendar-day key used for quota counting (UTC).
const DownloadDateFormat = "2006-01-02"

// Download records one served free-tier download. Rows are append-only; the
// daily quota is the count of rows for (ip, download_date).
type Download struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	IP           string    `gorm:"type:varchar(64);not null;index:idx_downloads_ip_date,priority:1" json:"ip"`
	DownloadDate string    `gorm:"type:varchar(10);not null;index:idx_downloads_ip_date,priority:2" json:"download_date"`
	TaskUUID     string    `gorm:"type:varchar(36);not null;index" json:"task_uuid"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
