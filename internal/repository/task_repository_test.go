package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/model"
)

var taskCols = []string{"id", "user_id", "title", "description", "status", "priority", "due_date", "created_at", "updated_at"}

func newTaskRepo(t *testing.T, d database.Dialect) (*TaskRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTaskRepo(db, d), mock
}

func TestTaskRepoCreate(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)
	now := time.Now().UTC()
	uid := uint64(4)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(int64(4), "write report", nil, "todo", "high", nil).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id=?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(int64(9), int64(4), "write report", nil, "todo", "high", nil, now, now))

	task := &model.Task{UserID: &uid, Title: "write report", Status: model.TaskStatusTodo, Priority: model.TaskPriorityHigh}
	require.NoError(t, repo.Create(context.Background(), task))
	assert.Equal(t, uint64(9), task.ID)
	assert.True(t, task.OwnedBy(4))
	assert.Nil(t, task.Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)
	mock.ExpectQuery("FROM tasks WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskRepoListDefaults(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)
	now := time.Now().UTC()
	due := now.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + taskColumns + " FROM tasks ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(int64(1), nil, "orphan", "desc", "done", "low", due, now, now))

	tasks, err := repo.List(context.Background(), TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].UserID)
	assert.Equal(t, model.TaskStatusDone, tasks[0].Status)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, due, *tasks[0].DueDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepoListFiltersPostgres(t *testing.T) {
	repo, mock := newTaskRepo(t, database.Postgres)
	uid := uint64(2)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE user_id=$1 AND status=$2 AND priority=$3 ORDER BY title ASC, id ASC LIMIT $4 OFFSET $5")).
		WithArgs(int64(2), "in_progress", "urgent", 5, 10).
		WillReturnRows(sqlmock.NewRows(taskCols))

	tasks, err := repo.List(context.Background(), TaskFilter{
		UserID:   &uid,
		Status:   model.TaskStatusInProgress,
		Priority: model.TaskPriorityUrgent,
		SortBy:   "title",
		Order:    "ASC",
		Page:     3,
		PageSize: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepoListRejectsBadFilter(t *testing.T) {
	repo, _ := newTaskRepo(t, database.MySQL)
	for _, f := range []TaskFilter{
		{SortBy: "password"},
		{Order: "sideways"},
		{Page: -1},
		{PageSize: 101},
		{PageSize: -3},
	} {
		_, err := repo.List(context.Background(), f)
		assert.ErrorIs(t, err, ErrInvalidFilter, "%+v", f)
	}
}

func TestTaskRepoUpdate(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET title=?, description=?, status=?, priority=?, due_date=?, updated_at=? WHERE id=?")).
		WithArgs("new", nil, "done", "medium", nil, sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM tasks WHERE id").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(int64(3), int64(1), "new", nil, "done", "medium", nil, now, now))

	task := &model.Task{ID: 3, Title: "new", Status: model.TaskStatusDone, Priority: model.TaskPriorityMedium}
	require.NoError(t, repo.Update(context.Background(), task))
	assert.Equal(t, "new", task.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepoUpdateMissing(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)

	mock.ExpectExec("UPDATE tasks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM tasks WHERE id").WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &model.Task{ID: 3, Title: "x", Status: model.TaskStatusTodo, Priority: model.TaskPriorityLow})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskRepoDelete(t *testing.T) {
	repo, mock := newTaskRepo(t, database.MySQL)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id=?")).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 8))

	mock.ExpectExec("DELETE FROM tasks").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 8), ErrTaskNotFound)
}
