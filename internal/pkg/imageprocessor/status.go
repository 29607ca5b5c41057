package imageprocessor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/artimagehub/ArtImageHub/internal/pkg/cache"
)

// Cache key formats for task processing state. The database row stays
// authoritative; the cache only spares the polling endpoint a DB read.
const (
	TaskStatusKeyFormat   = "task:status:%s"   // task:status:<uuid>
	TaskProgressKeyFormat = "task:progress:%s" // task:progress:<uuid>
	TaskStageKeyFormat    = "task:stage:%s"    // task:stage:<uuid>

	statusTTL = 24 * time.Hour
)

// SetTaskStatus caches the processing status of a task.
func SetTaskStatus(taskUUID string, status string) error {
	return cache.Set(fmt.Sprintf(TaskStatusKeyFormat, taskUUID), status, statusTTL)
}

// GetTaskStatus retrieves the cached processing status of a task.
func GetTaskStatus(taskUUID string) (string, error) {
	return cache.Get(fmt.Sprintf(TaskStatusKeyFormat, taskUUID))
}

// SetTaskProgress caches progress percent and stage text for a task.
func SetTaskProgress(taskUUID string, progress int, stage string) error {
	if err := cache.Set(fmt.Sprintf(TaskProgressKeyFormat, taskUUID), strconv.Itoa(progress), statusTTL); err != nil {
		return err
	}
	return cache.Set(fmt.Sprintf(TaskStageKeyFormat, taskUUID), stage, statusTTL)
}

// GetTaskProgress retrieves cached progress percent and stage for a task.
func GetTaskProgress(taskUUID string) (int, string, error) {
	progress, err := cache.GetInt(fmt.Sprintf(TaskProgressKeyFormat, taskUUID))
	if err != nil {
		return 0, "", err
	}
	stage, err := cache.Get(fmt.Sprintf(TaskStageKeyFormat, taskUUID))
	if err != nil {
		return progress, "", err
	}
	return progress, stage, nil
}
