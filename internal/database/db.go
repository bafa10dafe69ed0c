package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dayeon/shop-reservation/internal/config"
)

// The ledgers derive balances and scores by replaying DATETIME-ordered
// history, so every connection is pinned to UTC twice over: loc=UTC
// makes the driver scan DATETIME columns as UTC time.Time values, and
// the session time_zone keeps any server-side now() on the same clock
// as the timestamps the repositories write.
const sessionParams = "charset=utf8mb4&parseTime=true&loc=UTC&time_zone=" +
	// '+00:00', percent-encoded for the DSN
	"%27%2B00%3A00%27"

func dsn(cfg config.Config) string {
	auth := cfg.DBUser
	if cfg.DBPass != "" {
		auth += ":" + cfg.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?%s",
		auth, cfg.DBHost, cfg.DBPort, cfg.DBName, sessionParams)
}

// Open connects to MySQL and verifies the connection before handing
// the pool back.
func Open(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
