package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
)

const patientProfileColumns = `id, user_id, created_at, updated_at`

func (r *patientProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	query := `SELECT ` + patientProfileColumns + ` FROM patient_profiles WHERE id = $1`

	var profile model.PatientProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient profile: %w", translate(err))
	}
	return &profile, nil
}

func (r *patientProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	query := `SELECT ` + patientProfileColumns + ` FROM patient_profiles WHERE user_id = $1`

	var profile model.PatientProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get patient profile by user: %w", translate(err))
	}
	return &profile, nil
}
