package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

// Terminal transitions are guarded on status = processing in the WHERE clause.
const terminalUpdatePattern = "UPDATE `restoration_tasks` SET .+ WHERE uuid = \\? AND status = \\?"

func TestMarkFailedOnlyTouchesProcessingRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	// Pending and already-terminal rows match nothing under the guard, so a
	// task can never jump straight from pending to failed.
	mock.ExpectExec(terminalUpdatePattern).
		WithArgs(sqlmock.AnyArg(), "provider exploded", "Failed", models.TaskStatusFailed, "task-1", models.TaskStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkFailed("task-1", "provider exploded")
	assert.ErrorContains(t, err, "not processing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedFromProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(terminalUpdatePattern).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), models.TaskStatusCompleted, "task-2", models.TaskStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkCompleted("task-2", "uploads/results/task-2_result.jpg"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessingRequiresPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec("UPDATE `restoration_tasks` SET .+ WHERE uuid = \\? AND status = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.TaskStatusProcessing, "task-3", models.TaskStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessing("task-3")
	assert.ErrorContains(t, err, "not pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}
