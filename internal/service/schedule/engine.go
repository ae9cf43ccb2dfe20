package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service/access"
	"github.com/jwalitptl/care-api/internal/service/event"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/validator"
)

// Authorizer is the part of access.Resolver the engine depends on.
type Authorizer interface {
	Decide(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, action access.Action) (access.Decision, error)
}

// Engine runs the recurring schedule lifecycle for every domain. What
// differs between domains lives in its Policy.
type Engine struct {
	repo     repository.ScheduleRepository
	access   Authorizer
	policies map[model.Domain]Policy
	validate *validator.Validator
	events   *event.Emitter
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewEngine(
	repo repository.ScheduleRepository,
	authorizer Authorizer,
	validate *validator.Validator,
	events *event.Emitter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Engine {
	policies := make(map[model.Domain]Policy)
	for _, p := range []Policy{bpPolicy{}, sugarPolicy{}, medicationPolicy{}} {
		policies[p.Domain()] = p
	}

	return &Engine{
		repo:     repo,
		access:   authorizer,
		policies: policies,
		validate: validate,
		events:   events,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// scheduleRef is the payload of schedule.deleted.
type scheduleRef struct {
	ID               uuid.UUID    `json:"id"`
	Domain           model.Domain `json:"domain"`
	PatientProfileID uuid.UUID    `json:"patient_profile_id"`
}

func (e *Engine) policyFor(domain model.Domain) (Policy, error) {
	p, ok := e.policies[domain]
	if !ok {
		return nil, apperrors.Validation("domain", fmt.Sprintf("unknown schedule domain %q", domain))
	}
	return p, nil
}

// gate requires the actor to manage the patient's schedules.
func (e *Engine) gate(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID) error {
	d, err := e.access.Decide(ctx, actor, patientProfileID, access.ActionManageSchedules)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return access.ForbiddenFor(d, access.ActionManageSchedules)
	}
	return nil
}

// gateVisible is gate for operations addressed by a child id. An actor with
// no relationship to the patient learns nothing about the row.
func (e *Engine) gateVisible(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, resource string) error {
	d, err := e.access.Decide(ctx, actor, patientProfileID, access.ActionManageSchedules)
	if err != nil {
		return err
	}
	if !d.Visible {
		return apperrors.NotFound(resource, nil)
	}
	if !d.Allowed {
		return access.ForbiddenFor(d, access.ActionManageSchedules)
	}
	return nil
}

func (e *Engine) validateSpec(spec *model.ScheduleSpec) ([]model.ClockTime, error) {
	if err := e.validate.Validate(spec); err != nil {
		return nil, err
	}
	if err := ValidateRecurrence(spec.Frequency, spec.CustomDays); err != nil {
		return nil, err
	}
	if err := ValidateDuration(spec.DurationDays); err != nil {
		return nil, err
	}
	if err := ValidateStartDate(spec.StartDate); err != nil {
		return nil, err
	}
	return parseTimes(spec.Times)
}

// Create adds one schedule per requested time. The batch is atomic: any
// conflict leaves storage untouched.
func (e *Engine) Create(ctx context.Context, domain model.Domain, actor model.Actor, patientProfileID uuid.UUID, spec model.ScheduleSpec) ([]*model.Schedule, error) {
	p, err := e.policyFor(domain)
	if err != nil {
		return nil, err
	}
	if err := e.gate(ctx, actor, patientProfileID); err != nil {
		return nil, err
	}
	times, err := e.validateSpec(&spec)
	if err != nil {
		return nil, err
	}

	var out []*model.Schedule
	err = e.repo.RunInTx(ctx, func(q repository.ScheduleQueries) error {
		var err error
		out, err = e.createIn(ctx, q, p, actor, patientProfileID, &spec, times)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	e.logger.Info("schedules created",
		"domain", string(domain),
		"patient_profile_id", patientProfileID.String(),
		"count", len(out),
		"created_by", actor.UserID.String())
	return out, nil
}

func (e *Engine) createIn(
	ctx context.Context,
	q repository.ScheduleQueries,
	p Policy,
	actor model.Actor,
	patientProfileID uuid.UUID,
	spec *model.ScheduleSpec,
	times []model.ClockTime,
) ([]*model.Schedule, error) {
	if err := p.Prepare(ctx, q, patientProfileID, spec); err != nil {
		return nil, err
	}

	domain := p.Domain()
	now := e.now().UTC()
	out := make([]*model.Schedule, 0, len(times))
	for _, t := range times {
		s := &model.Schedule{
			Domain:           domain,
			PatientProfileID: patientProfileID,
			ScheduledTime:    t,
			StartDate:        model.DateOf(spec.StartDate),
			DurationDays:     copyInt(spec.DurationDays),
			Frequency:        spec.Frequency,
			CustomDays:       model.Weekdays(spec.CustomDays).Normalize(),
			IsActive:         true,
			CreatedBy:        actor.UserID,
		}
		p.Apply(spec, s)

		occupants, err := q.FindSlotOccupants(ctx, p.SlotKey(s), uuid.Nil)
		if err != nil {
			return nil, apperrors.Internal(err)
		}

		var inactive *model.Schedule
		for _, o := range occupants {
			if o.IsActive {
				return nil, e.slotTaken(domain, t, "precheck", nil)
			}
			if inactive == nil {
				inactive = o
			}
		}

		if inactive != nil && p.OnConflict() == Reactivate {
			s.ID = inactive.ID
			s.CreatedAt = inactive.CreatedAt
			s.UpdatedAt = now
			if err := q.Update(ctx, s); err != nil {
				return nil, e.storageErr(err, domain, t)
			}
			if err := e.events.Emit(ctx, q, model.EventScheduleReactivated, s); err != nil {
				return nil, err
			}
			e.metrics.ScheduleMutations.WithLabelValues(string(domain), "reactivate").Inc()
			out = append(out, s)
			continue
		}

		s.ID = uuid.New()
		s.CreatedAt = now
		s.UpdatedAt = now
		if err := q.Insert(ctx, s); err != nil {
			return nil, e.storageErr(err, domain, t)
		}
		if err := e.events.Emit(ctx, q, model.EventScheduleCreated, s); err != nil {
			return nil, err
		}
		e.metrics.ScheduleMutations.WithLabelValues(string(domain), "create").Inc()
		out = append(out, s)
	}
	return out, nil
}

// Update applies patch to a schedule. A change to the slot key, or turning
// the row back on, re-checks the slot against every other row.
func (e *Engine) Update(ctx context.Context, domain model.Domain, actor model.Actor, scheduleID uuid.UUID, patch model.SchedulePatch) (*model.Schedule, error) {
	p, err := e.policyFor(domain)
	if err != nil {
		return nil, err
	}
	if err := e.validate.Validate(patch); err != nil {
		return nil, err
	}

	current, err := e.repo.GetByID(ctx, domain, scheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("schedule", err)
		}
		return nil, apperrors.Internal(err)
	}
	if err := e.gateVisible(ctx, actor, current.PatientProfileID, "schedule"); err != nil {
		return nil, err
	}

	next := *current
	if err := applyPatch(p, &patch, &next); err != nil {
		return nil, err
	}
	keyChanged := p.SlotKey(&next) != p.SlotKey(current)
	activated := next.IsActive && !current.IsActive

	err = e.repo.RunInTx(ctx, func(q repository.ScheduleQueries) error {
		if activated {
			if err := p.CanActivate(ctx, q, &next); err != nil {
				return err
			}
		}
		if keyChanged || activated {
			if err := e.checkSlot(ctx, q, p, &next); err != nil {
				return err
			}
		}

		next.UpdatedAt = e.now().UTC()
		if err := q.Update(ctx, &next); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("schedule", err)
			}
			return e.storageErr(err, domain, next.ScheduledTime)
		}
		return e.events.Emit(ctx, q, model.EventScheduleUpdated, &next)
	})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	e.metrics.ScheduleMutations.WithLabelValues(string(domain), "update").Inc()
	e.logger.Info("schedule updated",
		"domain", string(domain),
		"schedule_id", scheduleID.String(),
		"actor_id", actor.UserID.String())
	return &next, nil
}

func applyPatch(p Policy, patch *model.SchedulePatch, s *model.Schedule) error {
	if patch.ScheduledTime != nil {
		t, err := model.ParseClockTime(*patch.ScheduledTime)
		if err != nil {
			return apperrors.Validation("scheduled_time", err.Error())
		}
		s.ScheduledTime = t
	}

	if patch.StartDate != nil {
		if err := ValidateStartDate(*patch.StartDate); err != nil {
			return err
		}
		s.StartDate = model.DateOf(*patch.StartDate)
	}

	switch {
	case patch.ClearDuration && patch.DurationDays != nil:
		return apperrors.Validation("duration_days", "duration_days cannot be set and cleared together")
	case patch.ClearDuration:
		s.DurationDays = nil
	case patch.DurationDays != nil:
		if err := ValidateDuration(patch.DurationDays); err != nil {
			return err
		}
		s.DurationDays = copyInt(patch.DurationDays)
	}

	// frequency and custom_days are replaced together or not at all; the
	// side left out of the patch keeps its stored value.
	if patch.Frequency != nil || patch.CustomDays != nil {
		frequency := s.Frequency
		days := []model.Weekday(s.CustomDays)
		if patch.Frequency != nil {
			frequency = *patch.Frequency
		}
		if patch.CustomDays != nil {
			days = *patch.CustomDays
		}
		if err := ValidateRecurrence(frequency, days); err != nil {
			return err
		}
		s.Frequency = frequency
		s.CustomDays = model.Weekdays(days).Normalize()
	}

	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}

	return p.ApplyPatch(patch, s)
}

// checkSlot reports a conflict when another row holds the slot s is moving
// into.
func (e *Engine) checkSlot(ctx context.Context, q repository.ScheduleQueries, p Policy, s *model.Schedule) error {
	occupants, err := q.FindSlotOccupants(ctx, p.SlotKey(s), s.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	for _, o := range occupants {
		if (o.IsActive && s.IsActive) || p.OnConflict() == Reactivate {
			return e.slotTaken(p.Domain(), s.ScheduledTime, "precheck", nil)
		}
	}
	return nil
}

// Delete removes the schedule when it belongs to the patient. It reports
// false when nothing matched, so repeating a delete is harmless.
func (e *Engine) Delete(ctx context.Context, domain model.Domain, actor model.Actor, scheduleID, patientProfileID uuid.UUID) (bool, error) {
	if _, err := e.policyFor(domain); err != nil {
		return false, err
	}
	if err := e.gate(ctx, actor, patientProfileID); err != nil {
		return false, err
	}

	var deleted bool
	err := e.repo.RunInTx(ctx, func(q repository.ScheduleQueries) error {
		var err error
		deleted, err = q.Delete(ctx, domain, scheduleID, patientProfileID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !deleted {
			return nil
		}
		return e.events.Emit(ctx, q, model.EventScheduleDeleted, scheduleRef{
			ID:               scheduleID,
			Domain:           domain,
			PatientProfileID: patientProfileID,
		})
	})
	if err != nil {
		return false, apperrors.Wrap(err)
	}

	if deleted {
		e.metrics.ScheduleMutations.WithLabelValues(string(domain), "delete").Inc()
		e.logger.Info("schedule deleted",
			"domain", string(domain),
			"schedule_id", scheduleID.String(),
			"actor_id", actor.UserID.String())
	}
	return deleted, nil
}

func (e *Engine) List(ctx context.Context, domain model.Domain, actor model.Actor, patientProfileID uuid.UUID) ([]*model.Schedule, error) {
	if _, err := e.policyFor(domain); err != nil {
		return nil, err
	}
	if err := e.gate(ctx, actor, patientProfileID); err != nil {
		return nil, err
	}

	out, err := e.repo.ListByPatient(ctx, domain, patientProfileID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return out, nil
}

// ResolveActiveSchedule returns the active schedule whose window contains
// date, preferring the latest start_date. It returns nil when none does.
func (e *Engine) ResolveActiveSchedule(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID, date time.Time) (*model.Schedule, error) {
	covering, err := e.repo.ListActiveCovering(ctx, domain, patientProfileID, model.DateOf(date))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(covering) == 0 {
		return nil, nil
	}
	return covering[0], nil
}

// DueOn returns the active schedules whose recurrence fires on date.
func (e *Engine) DueOn(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID, date time.Time) ([]*model.Schedule, error) {
	covering, err := e.repo.ListActiveCovering(ctx, domain, patientProfileID, model.DateOf(date))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	due := make([]*model.Schedule, 0, len(covering))
	for _, s := range covering {
		if s.OccursOn(date) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (e *Engine) slotTaken(domain model.Domain, t model.ClockTime, source string, err error) error {
	e.metrics.ScheduleConflicts.WithLabelValues(string(domain), source).Inc()
	return apperrors.Conflict("active_slot_taken",
		fmt.Sprintf("a %s schedule already exists at %s", domain, t), err)
}

func (e *Engine) storageErr(err error, domain model.Domain, t model.ClockTime) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return e.slotTaken(domain, t, "storage", err)
	}
	return apperrors.Internal(err)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
