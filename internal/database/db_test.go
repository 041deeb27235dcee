package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNParsesTimesInUTC(t *testing.T) {
	got := dsn("booker", "s3cret", "db.internal", "3306", "talkademy")
	assert.Equal(t, "booker:s3cret@tcp(db.internal:3306)/talkademy?charset=utf8mb4&parseTime=true&loc=UTC", got)
	// DATETIME columns must scan into time.Time, in UTC.
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "loc=UTC")
}

func TestDSNOmitsEmptyPassword(t *testing.T) {
	got := dsn("booker", "", "localhost", "3306", "talkademy")
	assert.Equal(t, "booker@tcp(localhost:3306)/talkademy?charset=utf8mb4&parseTime=true&loc=UTC", got)
}
