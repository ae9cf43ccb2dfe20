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

// ConflictPolicy decides what happens when a new schedule lands on a slot
// held by an inactive row.
type ConflictPolicy int

const (
	// Reject inserts alongside inactive rows; only an active occupant
	// conflicts.
	Reject ConflictPolicy = iota
	// Reactivate revives the inactive row in place. The slot stays reserved
	// by inactive rows, so any occupant blocks a key change.
	Reactivate
)

// Policy carries what differs between schedule domains.
type Policy interface {
	Domain() model.Domain
	SlotKey(s *model.Schedule) model.SlotKey
	OnConflict() ConflictPolicy
	// Prepare checks and normalizes domain fields of spec before rows are
	// built. It runs inside the creating transaction.
	Prepare(ctx context.Context, q repository.ScheduleQueries, patientProfileID uuid.UUID, spec *model.ScheduleSpec) error
	Apply(spec *model.ScheduleSpec, s *model.Schedule)
	ApplyPatch(patch *model.SchedulePatch, s *model.Schedule) error
	// CanActivate runs inside the updating transaction when a patch turns
	// an inactive row back on.
	CanActivate(ctx context.Context, q repository.ScheduleQueries, s *model.Schedule) error
}

func notApplicable(field string, domain model.Domain) error {
	return apperrors.Validation(field, fmt.Sprintf("%s does not apply to %s schedules", field, domain))
}

type bpPolicy struct{}

func (bpPolicy) Domain() model.Domain       { return model.DomainBP }
func (bpPolicy) OnConflict() ConflictPolicy { return Reject }

func (bpPolicy) SlotKey(s *model.Schedule) model.SlotKey {
	return model.SlotKey{
		Domain:           model.DomainBP,
		PatientProfileID: s.PatientProfileID,
		Time:             s.ScheduledTime,
	}
}

func (bpPolicy) Prepare(_ context.Context, _ repository.ScheduleQueries, _ uuid.UUID, spec *model.ScheduleSpec) error {
	if spec.SugarType != nil {
		return notApplicable("sugar_type", model.DomainBP)
	}
	if spec.MedicationID != nil {
		return notApplicable("medication_id", model.DomainBP)
	}
	if spec.DosageInstruction != nil {
		return notApplicable("dosage_instruction", model.DomainBP)
	}
	return nil
}

func (bpPolicy) Apply(*model.ScheduleSpec, *model.Schedule) {}

func (bpPolicy) CanActivate(context.Context, repository.ScheduleQueries, *model.Schedule) error {
	return nil
}

func (bpPolicy) ApplyPatch(patch *model.SchedulePatch, _ *model.Schedule) error {
	if patch.SugarType != nil {
		return notApplicable("sugar_type", model.DomainBP)
	}
	if patch.DosageInstruction != nil {
		return notApplicable("dosage_instruction", model.DomainBP)
	}
	return nil
}

// Sugar slots are also keyed by reading type and start date, so a new
// window for the same reading may begin once the previous one is replaced.
type sugarPolicy struct{}

func (sugarPolicy) Domain() model.Domain       { return model.DomainSugar }
func (sugarPolicy) OnConflict() ConflictPolicy { return Reject }

func (sugarPolicy) SlotKey(s *model.Schedule) model.SlotKey {
	key := model.SlotKey{
		Domain:           model.DomainSugar,
		PatientProfileID: s.PatientProfileID,
		Time:             s.ScheduledTime,
		StartDate:        model.DateKey(s.StartDate),
	}
	if s.SugarType != nil {
		key.SugarType = *s.SugarType
	}
	return key
}

func (sugarPolicy) Prepare(_ context.Context, _ repository.ScheduleQueries, _ uuid.UUID, spec *model.ScheduleSpec) error {
	if spec.SugarType == nil {
		return apperrors.Validation("sugar_type", "sugar_type is required")
	}
	if spec.MedicationID != nil {
		return notApplicable("medication_id", model.DomainSugar)
	}
	if spec.DosageInstruction != nil {
		return notApplicable("dosage_instruction", model.DomainSugar)
	}
	return nil
}

func (sugarPolicy) CanActivate(context.Context, repository.ScheduleQueries, *model.Schedule) error {
	return nil
}

func (sugarPolicy) Apply(spec *model.ScheduleSpec, s *model.Schedule) {
	st := *spec.SugarType
	s.SugarType = &st
}

func (sugarPolicy) ApplyPatch(patch *model.SchedulePatch, s *model.Schedule) error {
	if patch.DosageInstruction != nil {
		return notApplicable("dosage_instruction", model.DomainSugar)
	}
	if patch.SugarType != nil {
		st := *patch.SugarType
		s.SugarType = &st
	}
	return nil
}

type medicationPolicy struct{}

func (medicationPolicy) Domain() model.Domain       { return model.DomainMedication }
func (medicationPolicy) OnConflict() ConflictPolicy { return Reactivate }

func (medicationPolicy) SlotKey(s *model.Schedule) model.SlotKey {
	key := model.SlotKey{
		Domain: model.DomainMedication,
		Time:   s.ScheduledTime,
	}
	if s.MedicationID != nil {
		key.MedicationID = *s.MedicationID
	}
	return key
}

func (medicationPolicy) Prepare(ctx context.Context, q repository.ScheduleQueries, patientProfileID uuid.UUID, spec *model.ScheduleSpec) error {
	if spec.SugarType != nil {
		return notApplicable("sugar_type", model.DomainMedication)
	}
	if spec.MedicationID == nil {
		return apperrors.Validation("medication_id", "medication_id is required")
	}

	med, err := q.GetMedication(ctx, *spec.MedicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("medication", err)
		}
		return apperrors.Internal(err)
	}
	if med.PatientProfileID != patientProfileID {
		return apperrors.NotFound("medication", nil)
	}
	if !med.IsActive {
		return apperrors.Validation("medication_id", "medication is inactive")
	}

	dosage, err := normalizeDosage(spec.DosageInstruction)
	if err != nil {
		return err
	}
	spec.DosageInstruction = dosage
	return nil
}

func (medicationPolicy) Apply(spec *model.ScheduleSpec, s *model.Schedule) {
	id := *spec.MedicationID
	s.MedicationID = &id
	if spec.DosageInstruction != nil {
		d := *spec.DosageInstruction
		s.DosageInstruction = &d
	}
}

func (medicationPolicy) ApplyPatch(patch *model.SchedulePatch, s *model.Schedule) error {
	if patch.SugarType != nil {
		return notApplicable("sugar_type", model.DomainMedication)
	}
	if patch.DosageInstruction != nil {
		dosage, err := normalizeDosage(patch.DosageInstruction)
		if err != nil {
			return err
		}
		s.DosageInstruction = dosage
	}
	return nil
}

// CanActivate keeps a dose off while its medication is off. The parent
// toggle is the only way to bring its doses back.
func (medicationPolicy) CanActivate(ctx context.Context, q repository.ScheduleQueries, s *model.Schedule) error {
	if s.MedicationID == nil {
		return apperrors.Validation("medication_id", "medication_id is required")
	}
	med, err := q.GetMedication(ctx, *s.MedicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("medication", err)
		}
		return apperrors.Internal(err)
	}
	if !med.IsActive {
		return apperrors.Validation("is_active", "medication is inactive")
	}
	return nil
}

func normalizeDosage(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*raw)
	if len(d) < 2 || len(d) > 200 {
		return nil, apperrors.Validation("dosage_instruction", "dosage_instruction must be 2 to 200 characters")
	}
	return &d, nil
}
