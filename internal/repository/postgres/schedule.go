package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

const scheduleColumns = `
	id, domain, patient_profile_id, scheduled_time, start_date, duration_days,
	frequency, custom_days, is_active, created_by, sugar_type, medication_id,
	dosage_instruction, created_at, updated_at`

// scheduleQueries runs against either the pool or an open transaction.
type scheduleQueries struct {
	q sqlx.ExtContext
}

func (r *scheduleRepository) RunInTx(ctx context.Context, fn func(q repository.ScheduleQueries) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&scheduleQueries{q: tx})
	})
}

func (s *scheduleQueries) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	return insertOutboxEvent(ctx, s.q, event)
}

func (s *scheduleQueries) GetByID(ctx context.Context, domain model.Domain, id uuid.UUID) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1 AND domain = $2`

	var sched model.Schedule
	if err := sqlx.GetContext(ctx, s.q, &sched, query, id, domain); err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", translate(err))
	}
	return &sched, nil
}

func (s *scheduleQueries) FindSlotOccupants(ctx context.Context, key model.SlotKey, excludeID uuid.UUID) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE domain = $1`
	args := []interface{}{key.Domain}
	bind := func(clause string, v interface{}) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	switch key.Domain {
	case model.DomainMedication:
		bind("medication_id = $%d", key.MedicationID)
	case model.DomainSugar:
		bind("patient_profile_id = $%d", key.PatientProfileID)
		bind("sugar_type = $%d", key.SugarType)
		bind("start_date = $%d::date", key.StartDate)
	default:
		bind("patient_profile_id = $%d", key.PatientProfileID)
	}
	bind("scheduled_time = $%d", key.Time)
	if excludeID != uuid.Nil {
		bind("id <> $%d", excludeID)
	}
	query += ` ORDER BY is_active DESC, created_at DESC`

	var occupants []*model.Schedule
	if err := sqlx.SelectContext(ctx, s.q, &occupants, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find slot occupants: %w", err)
	}
	return occupants, nil
}

func (s *scheduleQueries) Insert(ctx context.Context, sched *model.Schedule) error {
	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.q.ExecContext(ctx, query,
		sched.ID,
		sched.Domain,
		sched.PatientProfileID,
		sched.ScheduledTime,
		sched.StartDate,
		sched.DurationDays,
		sched.Frequency,
		sched.CustomDays,
		sched.IsActive,
		sched.CreatedBy,
		sched.SugarType,
		sched.MedicationID,
		sched.DosageInstruction,
		sched.CreatedAt,
		sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", translate(err))
	}
	return nil
}

func (s *scheduleQueries) Update(ctx context.Context, sched *model.Schedule) error {
	query := `
		UPDATE schedules
		SET scheduled_time = $1, start_date = $2, duration_days = $3,
			frequency = $4, custom_days = $5, is_active = $6, created_by = $7,
			sugar_type = $8, dosage_instruction = $9, updated_at = $10
		WHERE id = $11 AND domain = $12
	`
	res, err := s.q.ExecContext(ctx, query,
		sched.ScheduledTime,
		sched.StartDate,
		sched.DurationDays,
		sched.Frequency,
		sched.CustomDays,
		sched.IsActive,
		sched.CreatedBy,
		sched.SugarType,
		sched.DosageInstruction,
		sched.UpdatedAt,
		sched.ID,
		sched.Domain,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", translate(err))
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to update schedule: %w", repository.ErrNotFound)
	}
	return nil
}

func (s *scheduleQueries) Delete(ctx context.Context, domain model.Domain, id, patientProfileID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM schedules
		WHERE id = $1 AND patient_profile_id = $2 AND domain = $3
	`
	res, err := s.q.ExecContext(ctx, query, id, patientProfileID, domain)
	if err != nil {
		return false, fmt.Errorf("failed to delete schedule: %w", err)
	}
	return affected(res)
}

func (s *scheduleQueries) ListByPatient(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE domain = $1 AND patient_profile_id = $2
		ORDER BY scheduled_time ASC, created_at ASC`

	var schedules []*model.Schedule
	if err := sqlx.SelectContext(ctx, s.q, &schedules, query, domain, patientProfileID); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *scheduleQueries) ListActiveCovering(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID, day time.Time) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE domain = $1 AND patient_profile_id = $2 AND is_active
		AND start_date <= $3::date
		AND (duration_days IS NULL OR start_date + duration_days - 1 >= $3::date)
		ORDER BY start_date DESC, created_at DESC`

	var schedules []*model.Schedule
	err := sqlx.SelectContext(ctx, s.q, &schedules, query, domain, patientProfileID, model.DateKey(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules for %s: %w", model.DateKey(day), err)
	}
	return schedules, nil
}

const medicationColumns = `
	id, patient_profile_id, medicine_name, purpose, prescribed_by,
	is_active, created_at, updated_at`

func (s *scheduleQueries) GetMedication(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	var med model.Medication
	if err := sqlx.GetContext(ctx, s.q, &med, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", translate(err))
	}
	return &med, nil
}

func (s *scheduleQueries) CreateMedication(ctx context.Context, med *model.Medication) error {
	query := `
		INSERT INTO medications (` + medicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		med.ID,
		med.PatientProfileID,
		med.MedicineName,
		med.Purpose,
		med.PrescribedBy,
		med.IsActive,
		med.CreatedAt,
		med.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", translate(err))
	}
	return nil
}

func (s *scheduleQueries) UpdateMedication(ctx context.Context, med *model.Medication) error {
	query := `
		UPDATE medications
		SET purpose = $1, is_active = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := s.q.ExecContext(ctx, query, med.Purpose, med.IsActive, med.UpdatedAt, med.ID)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", translate(err))
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to update medication: %w", repository.ErrNotFound)
	}
	return nil
}

func (s *scheduleQueries) SetActiveByMedication(ctx context.Context, medicationID uuid.UUID, active bool, at time.Time) (int64, error) {
	query := `
		UPDATE schedules
		SET is_active = $1, updated_at = $2
		WHERE domain = 'MEDICATION' AND medication_id = $3 AND is_active <> $1
	`
	res, err := s.q.ExecContext(ctx, query, active, at, medicationID)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade is_active=%t to schedules: %w", active, translate(err))
	}
	return res.RowsAffected()
}
