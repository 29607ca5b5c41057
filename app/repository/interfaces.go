package repository

import (
	"time"

	"github.com/artimagehub/ArtImageHub/app/models"
)

// TaskRepository defines data access methods for restoration tasks
type TaskRepository interface {
	Create(task *models.RestorationTask) error
	GetByUUID(uuid string) (*models.RestorationTask, error)
	UpdateProgress(uuid string, progress int, stage string) error
	MarkProcessing(uuid string) error
	MarkCompleted(uuid string, resultPath string) error
	MarkFailed(uuid string, errorMessage string) error
}

// SubscriptionRepository defines data access methods for subscriptions
type SubscriptionRepository interface {
	GetByEmail(email string) (*models.Subscription, error)
	GetByCustomerID(customerID string) (*models.Subscription, error)
}

// DownloadRepository defines data access methods for the download quota log
type DownloadRepository interface {
	CountByIPAndDate(ip string, date time.Time) (int64, error)
	Record(ip, taskUUID string, at time.Time) error
}

// Repositories holds all repository instances
type Repositories struct {
	Task         TaskRepository
	Subscription SubscriptionRepository
	Download     DownloadRepository
}
