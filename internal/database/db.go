package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iliyamo/task-manager/internal/config"
)

// Open connects to the configured database and verifies the connection.
// It returns the pool together with the Dialect that repositories use to
// adapt their SQL.
func Open(cfg config.DBConfig) (*sql.DB, Dialect, error) {
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	var driverName, dsn string
	switch d {
	case Postgres:
		driverName, dsn = "pgx", postgresDSN(cfg)
	default:
		driverName, dsn = "mysql", mysqlDSN(cfg)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, Dialect{}, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	return db, d, nil
}

// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
func mysqlDSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=disable&timezone=UTC",
	}
	if cfg.Pass != "" {
		u.User = url.UserPassword(cfg.User, cfg.Pass)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String()
}
