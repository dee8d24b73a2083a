// Package repository contains data access logic separated from HTTP handlers.
// This file implements the task store: CRUD plus a filtered, sorted and
// paginated listing.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/model"
)

const taskColumns = "id,user_id,title,description,status,priority,due_date,created_at,updated_at"

// Paging defaults and limits for task listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// taskSortColumns whitelists the columns a listing may be ordered by.
var taskSortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
}

// ErrInvalidFilter is returned by List for an unknown sort column or order.
var ErrInvalidFilter = errors.New("invalid task filter")

// TaskFilter narrows a task listing. A nil UserID lists every task.
type TaskFilter struct {
	UserID   *uint64
	Status   model.TaskStatus
	Priority model.TaskPriority
	SortBy   string // column name, default created_at
	Order    string // asc or desc, default desc
	Page     int    // 1-based, default 1
	PageSize int    // default DefaultPageSize, at most MaxPageSize
}

// TaskRepo encapsulates all database queries related to tasks.
type TaskRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewTaskRepo constructs a TaskRepo with the provided DB handle.
func NewTaskRepo(db *sql.DB, d database.Dialect) *TaskRepo {
	return &TaskRepo{db: db, dialect: d}
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t           model.Task
		userID      sql.NullInt64
		description sql.NullString
		status      string
		priority    string
		dueDate     sql.NullTime
	)
	if err := row.Scan(&t.ID, &userID, &t.Title, &description, &status, &priority, &dueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		t.UserID = &uid
	}
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	t.Status = model.TaskStatus(status)
	t.Priority = model.TaskPriority(priority)
	return &t, nil
}

// Create inserts a new task. On success the task's ID and timestamps are
// populated from the stored row.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	id, err := r.dialect.InsertID(ctx, r.db,
		"INSERT INTO tasks (user_id, title, description, status, priority, due_date) VALUES (?,?,?,?,?,?)",
		t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate)
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

// GetByID fetches a task by its ID regardless of owner. Ownership is
// enforced by the caller.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		r.dialect.Rebind("SELECT "+taskColumns+" FROM tasks WHERE id=?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// normalize applies defaults and validates the sort/paging parameters.
func (f *TaskFilter) normalize() error {
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if _, ok := taskSortColumns[f.SortBy]; !ok {
		return fmt.Errorf("%w: sort_by %q", ErrInvalidFilter, f.SortBy)
	}
	switch strings.ToLower(f.Order) {
	case "":
		f.Order = "desc"
	case "asc", "desc":
		f.Order = strings.ToLower(f.Order)
	default:
		return fmt.Errorf("%w: order %q", ErrInvalidFilter, f.Order)
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidFilter, f.Page)
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page_size %d", ErrInvalidFilter, f.PageSize)
	}
	return nil
}

// List returns one page of tasks matching the filter. Ties on the sort
// column are broken by id so pages are stable.
func (r *TaskRepo) List(ctx context.Context, f TaskFilter) ([]*model.Task, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		where = append(where, "user_id=?")
		args = append(args, *f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority=?")
		args = append(args, string(f.Priority))
	}

	var b strings.Builder
	b.WriteString("SELECT " + taskColumns + " FROM tasks")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	dir := strings.ToUpper(f.Order)
	fmt.Fprintf(&b, " ORDER BY %s %s, id %s LIMIT ? OFFSET ?", taskSortColumns[f.SortBy], dir, dir)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(b.String()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable fields of t back to its row and refreshes the
// timestamps. It returns ErrTaskNotFound when the row is gone.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		"UPDATE tasks SET title=?, description=?, status=?, priority=?, due_date=?, updated_at=? WHERE id=?"),
		t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, time.Now().UTC(), t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 affected rows when nothing changed; confirm the row exists.
		if _, err := r.GetByID(ctx, t.ID); err != nil {
			return err
		}
	}
	stored, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

// Delete removes a task by id.
func (r *TaskRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind("DELETE FROM tasks WHERE id=?"), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
