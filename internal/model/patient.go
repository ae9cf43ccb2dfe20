package model

import (
	"github.com/google/uuid"
)

// PatientProfile belongs to exactly one user holding the PATIENT role and
// owns every schedule and log of that patient.
type PatientProfile struct {
	Base
	UserID uuid.UUID `db:"user_id" json:"user_id"`
}
