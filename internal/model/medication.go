package model

import (
	"github.com/google/uuid"
)

// Medication is the parent record of a patient's medication schedules.
type Medication struct {
	Base
	PatientProfileID uuid.UUID `db:"patient_profile_id" json:"patient_profile_id"`
	MedicineName     string    `db:"medicine_name" json:"medicine_name"`
	Purpose          *string   `db:"purpose" json:"purpose,omitempty"`
	PrescribedBy     uuid.UUID `db:"prescribed_by" json:"prescribed_by"`
	IsActive         bool      `db:"is_active" json:"is_active"`
}

type MedicationInput struct {
	MedicineName string       `json:"medicine_name" validate:"required,min=1,max=200"`
	Purpose      *string      `json:"purpose" validate:"omitempty,max=500"`
	Schedule     ScheduleSpec `json:"schedule"`
}

type MedicationPatch struct {
	Purpose  *string `json:"purpose" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active"`
}
