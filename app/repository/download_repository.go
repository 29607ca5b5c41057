package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
)

type downloadRepository struct {
	db *gorm.DB
}

// NewDownloadRepository creates a download log repository backed by GORM.
func NewDownloadRepository(db *gorm.DB) DownloadRepository {
	return &downloadRepository{db: db}
}

func (r *downloadRepository) CountByIPAndDate(ip string, date time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Download{}).
		Where("ip = ? AND download_date = ?", ip, date.UTC().Format(models.DownloadDateFormat)).
		Count(&count).Error
	return count, err
}

func (r *downloadRepository) Record(ip, taskUUID string, at time.Time) error {
	return r.db.Create(&models.Download{
		IP:           ip,
		DownloadDate: at.UTC().Format(models.DownloadDateFormat),
		TaskUUID:     taskUUID,
	}).Error
}
