package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-manager/internal/config"
)

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)

	d, err = DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM users WHERE email=? AND role=? LIMIT 1"
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, "SELECT id FROM users WHERE email=$1 AND role=$2 LIMIT 1", Postgres.Rebind(q))
	assert.Equal(t, "SELECT '?' FROM t WHERE a=$1", Postgres.Rebind("SELECT '?' FROM t WHERE a=?"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1452}))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestInsertIDMySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO tasks").WithArgs("a").WillReturnResult(sqlmock.NewResult(17, 1))

	id, err := MySQL.InsertID(context.Background(), db, "INSERT INTO tasks (title) VALUES (?)", "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIDPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO tasks (title) VALUES ($1) RETURNING id").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := Postgres.InsertID(context.Background(), db, "INSERT INTO tasks (title) VALUES (?)", "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRunsAllStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tasks").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db, MySQL))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("boom"))

	err = Migrate(context.Background(), db, Postgres)
	assert.ErrorContains(t, err, "boom")
}

func TestDSNs(t *testing.T) {
	cfg := config.DBConfig{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "tasks"}
	dsn := mysqlDSN(cfg)
	assert.Contains(t, dsn, "app:pw@tcp(db:3306)/tasks?")
	assert.Contains(t, dsn, "parseTime=true")

	cfg.Port = "5432"
	assert.Equal(t, "postgres://app:pw@db:5432/tasks?sslmode=disable&timezone=UTC", postgresDSN(cfg))
}
