package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// CreateMedication stores a medication and its dose schedules together.
func (e *Engine) CreateMedication(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, input model.MedicationInput) (*model.Medication, []*model.Schedule, error) {
	p, err := e.policyFor(model.DomainMedication)
	if err != nil {
		return nil, nil, err
	}
	if err := e.gate(ctx, actor, patientProfileID); err != nil {
		return nil, nil, err
	}
	if err := e.validate.Validate(input); err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(input.MedicineName)
	if name == "" {
		return nil, nil, apperrors.Validation("medicine_name", "medicine_name is required")
	}

	spec := input.Schedule
	// the parent is created below, any id sent by the client is ignored
	spec.MedicationID = nil
	times, err := e.validateSpec(&spec)
	if err != nil {
		return nil, nil, err
	}

	now := e.now().UTC()
	med := &model.Medication{
		PatientProfileID: patientProfileID,
		MedicineName:     name,
		Purpose:          input.Purpose,
		PrescribedBy:     actor.UserID,
		IsActive:         true,
	}
	med.ID = uuid.New()
	med.CreatedAt = now
	med.UpdatedAt = now

	var schedules []*model.Schedule
	err = e.repo.RunInTx(ctx, func(q repository.ScheduleQueries) error {
		if err := q.CreateMedication(ctx, med); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return medicationExists(med.MedicineName, err)
			}
			return apperrors.Internal(err)
		}
		if err := e.events.Emit(ctx, q, model.EventMedicationCreated, med); err != nil {
			return err
		}

		spec.MedicationID = &med.ID
		var err error
		schedules, err = e.createIn(ctx, q, p, actor, patientProfileID, &spec, times)
		return err
	})
	if err != nil {
		return nil, nil, apperrors.Wrap(err)
	}

	e.logger.Info("medication created",
		"medication_id", med.ID.String(),
		"patient_profile_id", patientProfileID.String(),
		"schedules", len(schedules))
	return med, schedules, nil
}

// UpdateMedication replaces the purpose and toggles the parent. Toggling
// is_active carries over to every dose schedule in the same transaction.
func (e *Engine) UpdateMedication(ctx context.Context, actor model.Actor, medicationID uuid.UUID, patch model.MedicationPatch) (*model.Medication, error) {
	if err := e.validate.Validate(patch); err != nil {
		return nil, err
	}

	med, err := e.repo.GetMedication(ctx, medicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medication", err)
		}
		return nil, apperrors.Internal(err)
	}
	if err := e.gateVisible(ctx, actor, med.PatientProfileID, "medication"); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	var cascaded int64
	err = e.repo.RunInTx(ctx, func(q repository.ScheduleQueries) error {
		if patch.Purpose != nil {
			purpose := *patch.Purpose
			med.Purpose = &purpose
		}
		if patch.IsActive != nil && *patch.IsActive != med.IsActive {
			med.IsActive = *patch.IsActive
			n, err := q.SetActiveByMedication(ctx, med.ID, med.IsActive, now)
			if err != nil {
				return apperrors.Internal(err)
			}
			cascaded = n
		}

		med.UpdatedAt = now
		if err := q.UpdateMedication(ctx, med); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("medication", err)
			}
			if errors.Is(err, repository.ErrDuplicate) {
				return medicationExists(med.MedicineName, err)
			}
			return apperrors.Internal(err)
		}
		return e.events.Emit(ctx, q, model.EventMedicationUpdated, med)
	})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	e.logger.Info("medication updated",
		"medication_id", med.ID.String(),
		"is_active", med.IsActive,
		"schedules_changed", cascaded)
	return med, nil
}

// medicationExists reports a second active medication with the same name,
// compared case-insensitively, for one patient.
func medicationExists(name string, err error) error {
	return apperrors.Conflict("medication_exists",
		fmt.Sprintf("an active medication named %q already exists for this patient", name), err)
}
