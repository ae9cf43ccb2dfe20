package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

// Schedules implements repository.ScheduleRepository.
type Schedules struct{ s *Store }

func (s *Store) Schedules() *Schedules { return &Schedules{s: s} }

type schedQueries struct {
	s  *Store
	st *state
}

func (r *Schedules) RunInTx(_ context.Context, fn func(q repository.ScheduleQueries) error) error {
	_, err := run(r.s, func(st *state) (struct{}, error) {
		return struct{}{}, fn(&schedQueries{s: r.s, st: st})
	})
	return err
}

func (r *Schedules) exec(ctx context.Context, fn func(q repository.ScheduleQueries) error) error {
	return r.RunInTx(ctx, fn)
}

func (r *Schedules) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	return r.exec(ctx, func(q repository.ScheduleQueries) error { return q.Enqueue(ctx, event) })
}

func (r *Schedules) GetByID(ctx context.Context, domain model.Domain, id uuid.UUID) (out *model.Schedule, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		out, err = q.GetByID(ctx, domain, id)
		return err
	})
	return out, err
}

func (r *Schedules) FindSlotOccupants(ctx context.Context, key model.SlotKey, excludeID uuid.UUID) (out []*model.Schedule, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		out, err = q.FindSlotOccupants(ctx, key, excludeID)
		return err
	})
	return out, err
}

func (r *Schedules) Insert(ctx context.Context, s *model.Schedule) error {
	return r.exec(ctx, func(q repository.ScheduleQueries) error { return q.Insert(ctx, s) })
}

func (r *Schedules) Update(ctx context.Context, s *model.Schedule) error {
	return r.exec(ctx, func(q repository.ScheduleQueries) error { return q.Update(ctx, s) })
}

func (r *Schedules) Delete(ctx context.Context, domain model.Domain, id, patientProfileID uuid.UUID) (ok bool, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		ok, err = q.Delete(ctx, domain, id, patientProfileID)
		return err
	})
	return ok, err
}

func (r *Schedules) ListByPatient(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID) (out []*model.Schedule, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		out, err = q.ListByPatient(ctx, domain, patientProfileID)
		return err
	})
	return out, err
}

func (r *Schedules) ListActiveCovering(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID, day time.Time) (out []*model.Schedule, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		out, err = q.ListActiveCovering(ctx, domain, patientProfileID, day)
		return err
	})
	return out, err
}

func (r *Schedules) GetMedication(ctx context.Context, id uuid.UUID) (out *model.Medication, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		out, err = q.GetMedication(ctx, id)
		return err
	})
	return out, err
}

func (r *Schedules) CreateMedication(ctx context.Context, m *model.Medication) error {
	return r.exec(ctx, func(q repository.ScheduleQueries) error { return q.CreateMedication(ctx, m) })
}

func (r *Schedules) UpdateMedication(ctx context.Context, m *model.Medication) error {
	return r.exec(ctx, func(q repository.ScheduleQueries) error { return q.UpdateMedication(ctx, m) })
}

func (r *Schedules) SetActiveByMedication(ctx context.Context, medicationID uuid.UUID, active bool, at time.Time) (n int64, err error) {
	err = r.exec(ctx, func(q repository.ScheduleQueries) error {
		n, err = q.SetActiveByMedication(ctx, medicationID, active, at)
		return err
	})
	return n, err
}

func (q *schedQueries) Enqueue(_ context.Context, event *model.OutboxEvent) error {
	return q.s.enqueue(q.st, event)
}

func (q *schedQueries) GetByID(_ context.Context, domain model.Domain, id uuid.UUID) (*model.Schedule, error) {
	s, ok := q.st.schedules[id]
	if !ok || s.Domain != domain {
		return nil, fmt.Errorf("failed to get schedule: %w", repository.ErrNotFound)
	}
	return copySchedule(s), nil
}

// indexKey mirrors the partial unique indexes of the schedules table. The
// second result is false when the row is outside every index.
func indexKey(s *model.Schedule) (string, bool) {
	switch s.Domain {
	case model.DomainBP:
		if !s.IsActive {
			return "", false
		}
		return fmt.Sprintf("bp|%s|%s", s.PatientProfileID, s.ScheduledTime), true
	case model.DomainSugar:
		if !s.IsActive || s.SugarType == nil {
			return "", false
		}
		return fmt.Sprintf("sugar|%s|%s|%s|%s", s.PatientProfileID, s.ScheduledTime, *s.SugarType, model.DateKey(s.StartDate)), true
	case model.DomainMedication:
		if s.MedicationID == nil {
			return "", false
		}
		return fmt.Sprintf("medication|%s|%s", *s.MedicationID, s.ScheduledTime), true
	}
	return "", false
}

// checkRow enforces the table's check constraints and unique indexes.
func (q *schedQueries) checkRow(s *model.Schedule) error {
	switch s.Frequency {
	case model.FrequencyDaily, model.FrequencyMonthly:
		if len(s.CustomDays) != 0 {
			return fmt.Errorf("violates chk_schedules_recurrence")
		}
	case model.FrequencyWeekly:
		if len(s.CustomDays) == 0 {
			return fmt.Errorf("violates chk_schedules_recurrence")
		}
	default:
		return fmt.Errorf("violates frequency check")
	}
	if s.DurationDays != nil && (*s.DurationDays < 1 || *s.DurationDays > 3650) {
		return fmt.Errorf("violates duration_days check")
	}
	if model.DateOf(s.StartDate).Before(model.MinStartDate) {
		return fmt.Errorf("violates start_date check")
	}

	key, indexed := indexKey(s)
	if !indexed {
		return nil
	}
	for id, other := range q.st.schedules {
		if id == s.ID {
			continue
		}
		if otherKey, ok := indexKey(other); ok && otherKey == key {
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, key)
		}
	}
	return nil
}

func matchesSlot(s *model.Schedule, key model.SlotKey) bool {
	if s.Domain != key.Domain || s.ScheduledTime != key.Time {
		return false
	}
	switch key.Domain {
	case model.DomainMedication:
		return s.MedicationID != nil && *s.MedicationID == key.MedicationID
	case model.DomainSugar:
		return s.PatientProfileID == key.PatientProfileID &&
			s.SugarType != nil && *s.SugarType == key.SugarType &&
			model.DateKey(s.StartDate) == key.StartDate
	default:
		return s.PatientProfileID == key.PatientProfileID
	}
}

func (q *schedQueries) FindSlotOccupants(_ context.Context, key model.SlotKey, excludeID uuid.UUID) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for id, s := range q.st.schedules {
		if id == excludeID || !matchesSlot(s, key) {
			continue
		}
		out = append(out, copySchedule(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *schedQueries) Insert(_ context.Context, s *model.Schedule) error {
	if _, ok := q.st.schedules[s.ID]; ok {
		return fmt.Errorf("failed to insert schedule: %w: schedules_pkey", repository.ErrDuplicate)
	}
	if err := q.checkRow(s); err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	q.st.schedules[s.ID] = copySchedule(s)
	return nil
}

func (q *schedQueries) Update(_ context.Context, s *model.Schedule) error {
	current, ok := q.st.schedules[s.ID]
	if !ok || current.Domain != s.Domain {
		return fmt.Errorf("failed to update schedule: %w", repository.ErrNotFound)
	}
	if err := q.checkRow(s); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	q.st.schedules[s.ID] = copySchedule(s)
	return nil
}

func (q *schedQueries) Delete(_ context.Context, domain model.Domain, id, patientProfileID uuid.UUID) (bool, error) {
	s, ok := q.st.schedules[id]
	if !ok || s.Domain != domain || s.PatientProfileID != patientProfileID {
		return false, nil
	}
	delete(q.st.schedules, id)
	return true, nil
}

func (q *schedQueries) ListByPatient(_ context.Context, domain model.Domain, patientProfileID uuid.UUID) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for _, s := range q.st.schedules {
		if s.Domain == domain && s.PatientProfileID == patientProfileID {
			out = append(out, copySchedule(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ScheduledTime, out[j].ScheduledTime
		if a != b {
			return a.Hour*60+a.Minute < b.Hour*60+b.Minute
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (q *schedQueries) ListActiveCovering(_ context.Context, domain model.Domain, patientProfileID uuid.UUID, day time.Time) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for _, s := range q.st.schedules {
		if s.Domain == domain && s.PatientProfileID == patientProfileID && s.IsActive && s.Covers(day) {
			out = append(out, copySchedule(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *schedQueries) GetMedication(_ context.Context, id uuid.UUID) (*model.Medication, error) {
	m, ok := q.st.medications[id]
	if !ok {
		return nil, fmt.Errorf("failed to get medication: %w", repository.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (q *schedQueries) CreateMedication(_ context.Context, m *model.Medication) error {
	if _, ok := q.st.medications[m.ID]; ok {
		return fmt.Errorf("failed to create medication: %w: medications_pkey", repository.ErrDuplicate)
	}
	if q.activeNameTaken(m) {
		return fmt.Errorf("failed to create medication: %w: uq_medications_active_name", repository.ErrDuplicate)
	}
	cp := *m
	q.st.medications[m.ID] = &cp
	return nil
}

func (q *schedQueries) UpdateMedication(_ context.Context, m *model.Medication) error {
	current, ok := q.st.medications[m.ID]
	if !ok {
		return fmt.Errorf("failed to update medication: %w", repository.ErrNotFound)
	}
	next := *current
	next.IsActive = m.IsActive
	if q.activeNameTaken(&next) {
		return fmt.Errorf("failed to update medication: %w: uq_medications_active_name", repository.ErrDuplicate)
	}
	current.Purpose = m.Purpose
	current.IsActive = m.IsActive
	current.UpdatedAt = m.UpdatedAt
	return nil
}

// activeNameTaken mirrors uq_medications_active_name.
func (q *schedQueries) activeNameTaken(m *model.Medication) bool {
	if !m.IsActive {
		return false
	}
	for id, other := range q.st.medications {
		if id != m.ID && other.IsActive && other.PatientProfileID == m.PatientProfileID &&
			strings.EqualFold(other.MedicineName, m.MedicineName) {
			return true
		}
	}
	return false
}

func (q *schedQueries) SetActiveByMedication(_ context.Context, medicationID uuid.UUID, active bool, at time.Time) (int64, error) {
	var n int64
	for _, s := range q.st.schedules {
		if s.Domain == model.DomainMedication && s.MedicationID != nil && *s.MedicationID == medicationID && s.IsActive != active {
			s.IsActive = active
			s.UpdatedAt = at
			n++
		}
	}
	return n, nil
}
