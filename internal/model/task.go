package model

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task represents a row in the `tasks` table. UserID is nil for tasks
// whose owner has been deleted.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owning user, nullable.
//  Title       – short summary, at most 200 characters.
//  Description – optional free text.
//  Status      – todo, in_progress or done.
//  Priority    – low, medium, high or urgent.
//  DueDate     – optional deadline.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type Task struct {
	ID          uint64       // tasks.id
	UserID      *uint64      // tasks.user_id (nullable)
	Title       string       // tasks.title
	Description *string      // tasks.description (nullable)
	Status      TaskStatus   // tasks.status
	Priority    TaskPriority // tasks.priority
	DueDate     *time.Time   // tasks.due_date (nullable)
	CreatedAt   time.Time    // tasks.created_at
	UpdatedAt   time.Time    // tasks.updated_at
}

// OwnedBy reports whether the task belongs to the given user.
func (t *Task) OwnedBy(userID uint64) bool {
	return t.UserID != nil && *t.UserID == userID
}
