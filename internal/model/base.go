package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MinStartDate is the earliest start date a schedule may carry.
var MinStartDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
