package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Tasks outlive their owner: deleting a user sets tasks.user_id to NULL.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
		username VARCHAR(100) NULL,
		hashed_password VARCHAR(255) NOT NULL,
		role ENUM('user','admin') NOT NULL DEFAULT 'user',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY ux_users_email (email),
		KEY ix_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NULL,
		status ENUM('todo','in_progress','done') NOT NULL DEFAULT 'todo',
		priority ENUM('low','medium','high','urgent') NOT NULL DEFAULT 'medium',
		due_date DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_tasks_user_id (user_id),
		KEY ix_tasks_title (title),
		CONSTRAINT fk_tasks_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		username VARCHAR(100) NULL,
		hashed_password VARCHAR(255) NOT NULL,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','admin')),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users (email)`,
	`CREATE INDEX IF NOT EXISTS ix_users_username ON users (username)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NULL REFERENCES users (id) ON DELETE SET NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NULL,
		status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo','in_progress','done')),
		priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low','medium','high','urgent')),
		due_date TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS ix_tasks_user_id ON tasks (user_id)`,
	`CREATE INDEX IF NOT EXISTS ix_tasks_title ON tasks (title)`,
}

// Migrate creates the users and tasks tables when they do not exist yet.
// Every statement is idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d == Postgres {
		stmts = postgresSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s step %d: %w", d.Name(), i+1, err)
		}
	}
	return nil
}
