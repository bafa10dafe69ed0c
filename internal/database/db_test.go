package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dayeon/shop-reservation/internal/config"
)

func TestDSN_PinsLedgerTimestampsToUTC(t *testing.T) {
	// GIVEN: database settings from config
	// THEN: the DSN carries the UTC pinning the ledger folds rely on

	cfg := config.Config{
		DBUser: "app", DBPass: "secret",
		DBHost: "db", DBPort: "3306", DBName: "reservations",
	}
	got := dsn(cfg)

	assert.Contains(t, got, "app:secret@tcp(db:3306)/reservations?")
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "loc=UTC")
	assert.Contains(t, got, "time_zone=%27%2B00%3A00%27")
}

func TestDSN_NoPasswordOmitsColon(t *testing.T) {
	cfg := config.Config{DBUser: "app", DBHost: "db", DBPort: "3306", DBName: "reservations"}

	assert.Contains(t, dsn(cfg), "app@tcp(db:3306)/reservations?")
}
