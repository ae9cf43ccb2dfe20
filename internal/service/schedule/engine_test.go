package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/internal/service/access"
	"github.com/jwalitptl/care-api/internal/service/event"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/validator"
)

type fixture struct {
	store   *memory.Store
	engine  *Engine
	patient model.Actor
	profile *model.PatientProfile
	doctor  *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	patient := store.AddUser(model.RolePatient)
	doctor := store.AddUser(model.RoleDoctor)
	profile := store.AddPatientProfile(patient.ID)

	log := logger.Nop()
	m := metrics.NewTestMetrics()
	resolver := access.NewResolver(store.Users(), store.Profiles(), store.Connections(), access.DefaultConfig(), log, m)
	engine := NewEngine(store.Schedules(), resolver, validator.New(), event.NewEmitter(log), log, m)

	clock := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	engine.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	return &fixture{
		store:   store,
		engine:  engine,
		patient: model.NewActor(patient.ID, model.RolePatient),
		profile: profile,
		doctor:  doctor,
	}
}

func (f *fixture) connectDoctor(t *testing.T) model.Actor {
	t.Helper()

	now := time.Now().UTC()
	conn := &model.Connection{
		PatientID:       f.profile.UserID,
		ConnectedUserID: f.doctor.ID,
		CreatedByID:     f.doctor.ID,
		ConnectionType:  model.ConnectionTypeDoctor,
		Status:          model.ConnectionStatusAccepted,
	}
	conn.ID = uuid.New()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	require.NoError(t, f.store.Connections().Create(context.Background(), conn))
	return model.NewActor(f.doctor.ID, model.RoleDoctor)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daily(times ...string) model.ScheduleSpec {
	return model.ScheduleSpec{
		Times:     times,
		Frequency: model.FrequencyDaily,
		StartDate: date(2024, 1, 1),
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func sugar(v model.SugarType) *model.SugarType { return &v }

func TestCreateBPConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("08:00"))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].IsActive)
	assert.Equal(t, model.MustClockTime("08:00"), created[0].ScheduledTime)
	assert.Nil(t, created[0].DurationDays)
	assert.Equal(t, f.patient.UserID, created[0].CreatedBy)

	_, err = f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("08:00:00"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, "active_slot_taken", apperrors.RuleOf(err))
	assert.Equal(t, 1, f.store.ScheduleCount(model.DomainBP))
}

func TestCreateUnconnectedDoctorForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Create(context.Background(), model.DomainBP,
		model.NewActor(f.doctor.ID, model.RoleDoctor), f.profile.ID, daily("08:00"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	assert.Equal(t, 0, f.store.ScheduleCount(model.DomainBP))
}

func TestCreateConnectedDoctor(t *testing.T) {
	f := newFixture(t)
	doctor := f.connectDoctor(t)

	created, err := f.engine.Create(context.Background(), model.DomainBP, doctor, f.profile.ID, daily("08:00"))
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, created[0].CreatedBy)
}

func TestCreateBatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("08:00"))
	require.NoError(t, err)
	events := len(f.store.Events())

	_, err = f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("07:00", "08:00"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, 1, f.store.ScheduleCount(model.DomainBP))
	assert.Len(t, f.store.Events(), events)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		spec  model.ScheduleSpec
		field string
	}{
		{
			name:  "duplicate times",
			spec:  daily("08:00", "08:00:30"),
			field: "scheduled_times",
		},
		{
			name:  "bad time",
			spec:  daily("25:00"),
			field: "scheduled_times",
		},
		{
			name: "weekly without days",
			spec: model.ScheduleSpec{
				Times: []string{"08:00"}, Frequency: model.FrequencyWeekly, StartDate: date(2024, 1, 1),
			},
			field: "custom_days",
		},
		{
			name: "daily with days",
			spec: model.ScheduleSpec{
				Times: []string{"08:00"}, Frequency: model.FrequencyDaily, StartDate: date(2024, 1, 1),
				CustomDays: []model.Weekday{model.Monday},
			},
			field: "custom_days",
		},
		{
			name: "duration too long",
			spec: model.ScheduleSpec{
				Times: []string{"08:00"}, Frequency: model.FrequencyDaily, StartDate: date(2024, 1, 1),
				DurationDays: intPtr(3651),
			},
			field: "duration_days",
		},
		{
			name: "start date before 2000",
			spec: model.ScheduleSpec{
				Times: []string{"08:00"}, Frequency: model.FrequencyDaily, StartDate: date(1999, 12, 31),
			},
			field: "start_date",
		},
		{
			name: "missing start date",
			spec: model.ScheduleSpec{
				Times: []string{"08:00"}, Frequency: model.FrequencyDaily,
			},
			field: "start_date",
		},
		{
			name:  "no times",
			spec:  model.ScheduleSpec{Frequency: model.FrequencyDaily, StartDate: date(2024, 1, 1)},
			field: "scheduled_times",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, tt.spec)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
			assert.Equal(t, tt.field, apperrors.RuleOf(err))
		})
	}
}

func TestCreateSugar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, model.DomainSugar, f.patient, f.profile.ID, daily("08:00"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	fasting := daily("08:00")
	fasting.SugarType = sugar(model.SugarFasting)
	_, err = f.engine.Create(ctx, model.DomainSugar, f.patient, f.profile.ID, fasting)
	require.NoError(t, err)

	random := daily("08:00")
	random.SugarType = sugar(model.SugarRandom)
	_, err = f.engine.Create(ctx, model.DomainSugar, f.patient, f.profile.ID, random)
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, model.DomainSugar, f.patient, f.profile.ID, fasting)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	nextWindow := fasting
	nextWindow.StartDate = date(2024, 2, 1)
	_, err = f.engine.Create(ctx, model.DomainSugar, f.patient, f.profile.ID, nextWindow)
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.ScheduleCount(model.DomainSugar))
}

func TestMedicationReactivatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	med, created, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, model.MedicationInput{
		MedicineName: "Metformin",
		Schedule: model.ScheduleSpec{
			Times:             []string{"09:00"},
			Frequency:         model.FrequencyDaily,
			StartDate:         date(2024, 1, 1),
			DosageInstruction: strPtr("500mg after breakfast"),
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	original := created[0]

	_, err = f.engine.Update(ctx, model.DomainMedication, f.patient, original.ID, model.SchedulePatch{IsActive: boolPtr(false)})
	require.NoError(t, err)

	revived, err := f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, model.ScheduleSpec{
		Times:             []string{"09:00"},
		Frequency:         model.FrequencyWeekly,
		CustomDays:        []model.Weekday{model.Friday, model.Monday},
		StartDate:         date(2024, 3, 1),
		MedicationID:      &med.ID,
		DosageInstruction: strPtr("  1000mg with water "),
	})
	require.NoError(t, err)
	require.Len(t, revived, 1)
	assert.Equal(t, original.ID, revived[0].ID)
	assert.True(t, revived[0].IsActive)
	assert.Equal(t, "1000mg with water", *revived[0].DosageInstruction)
	assert.Equal(t, model.Weekdays{model.Monday, model.Friday}, revived[0].CustomDays)
	assert.Equal(t, 1, f.store.ScheduleCount(model.DomainMedication))

	events := f.store.Events()
	assert.Equal(t, model.EventScheduleReactivated, events[len(events)-1].EventType)

	_, err = f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, model.ScheduleSpec{
		Times:        []string{"09:00"},
		Frequency:    model.FrequencyDaily,
		StartDate:    date(2024, 3, 1),
		MedicationID: &med.ID,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestMedicationChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	spec := daily("09:00")
	_, err := f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, spec)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	unknown := uuid.New()
	spec.MedicationID = &unknown
	_, err = f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, spec)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	med, _, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, model.MedicationInput{
		MedicineName: "Aspirin",
		Schedule:     daily("07:00"),
	})
	require.NoError(t, err)

	strangerProfile := f.store.AddPatientProfile(f.store.AddUser(model.RolePatient).ID)
	stranger := model.NewActor(strangerProfile.UserID, model.RolePatient)
	spec.MedicationID = &med.ID
	_, err = f.engine.Create(ctx, model.DomainMedication, stranger, strangerProfile.ID, spec)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	spec.DosageInstruction = strPtr(" x ")
	_, err = f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, spec)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	assert.Equal(t, "dosage_instruction", apperrors.RuleOf(err))

	_, err = f.engine.UpdateMedication(ctx, f.patient, med.ID, model.MedicationPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	spec.DosageInstruction = nil
	_, err = f.engine.Create(ctx, model.DomainMedication, f.patient, f.profile.ID, spec)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	assert.Equal(t, "medication_id", apperrors.RuleOf(err))
}

func TestUpdateMedicationCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	med, created, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, model.MedicationInput{
		MedicineName: "Amlodipine",
		Purpose:      strPtr("blood pressure"),
		Schedule:     daily("08:00", "20:00"),
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	updated, err := f.engine.UpdateMedication(ctx, f.patient, med.ID, model.MedicationPatch{
		Purpose:  strPtr("hypertension"),
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "hypertension", *updated.Purpose)

	list, err := f.engine.List(ctx, model.DomainMedication, f.patient, f.profile.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.False(t, s.IsActive)
	}

	_, err = f.engine.UpdateMedication(ctx, f.patient, med.ID, model.MedicationPatch{IsActive: boolPtr(true)})
	require.NoError(t, err)
	list, err = f.engine.List(ctx, model.DomainMedication, f.patient, f.profile.ID)
	require.NoError(t, err)
	for _, s := range list {
		assert.True(t, s.IsActive)
	}

	_, err = f.engine.UpdateMedication(ctx, model.NewActor(f.doctor.ID, model.RoleDoctor), med.ID, model.MedicationPatch{IsActive: boolPtr(false)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestMedicationDoseStaysOffWithParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	med, created, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, model.MedicationInput{
		MedicineName: "Lisinopril",
		Schedule:     daily("09:00"),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	dose := created[0].ID

	_, err = f.engine.Update(ctx, model.DomainMedication, f.patient, dose, model.SchedulePatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	back, err := f.engine.Update(ctx, model.DomainMedication, f.patient, dose, model.SchedulePatch{IsActive: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, back.IsActive)

	_, err = f.engine.UpdateMedication(ctx, f.patient, med.ID, model.MedicationPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)

	_, err = f.engine.Update(ctx, model.DomainMedication, f.patient, dose, model.SchedulePatch{IsActive: boolPtr(true)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	assert.Equal(t, "is_active", apperrors.RuleOf(err))

	due, err := f.engine.DueOn(ctx, model.DomainMedication, f.profile.ID, date(2024, 2, 1))
	require.NoError(t, err)
	assert.Empty(t, due)

	// other fields stay editable while the parent is off
	edited, err := f.engine.Update(ctx, model.DomainMedication, f.patient, dose, model.SchedulePatch{DosageInstruction: strPtr("with food")})
	require.NoError(t, err)
	assert.False(t, edited.IsActive)

	_, err = f.engine.UpdateMedication(ctx, f.patient, med.ID, model.MedicationPatch{IsActive: boolPtr(true)})
	require.NoError(t, err)
	due, err = f.engine.DueOn(ctx, model.DomainMedication, f.profile.ID, date(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dose, due[0].ID)
}

func TestMedicationNameIsUniqueWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := model.MedicationInput{MedicineName: "Metformin", Schedule: daily("08:00")}
	first, _, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, input)
	require.NoError(t, err)

	input.MedicineName = " metformin "
	_, _, err = f.engine.CreateMedication(ctx, f.patient, f.profile.ID, input)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, "medication_exists", apperrors.RuleOf(err))
	assert.Equal(t, 1, f.store.ScheduleCount(model.DomainMedication))
	assert.Len(t, f.store.Events(), 2)

	other := f.store.AddPatientProfile(f.store.AddUser(model.RolePatient).ID)
	_, _, err = f.engine.CreateMedication(ctx, model.NewActor(other.UserID, model.RolePatient), other.ID, input)
	require.NoError(t, err)

	_, err = f.engine.UpdateMedication(ctx, f.patient, first.ID, model.MedicationPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	second, _, err := f.engine.CreateMedication(ctx, f.patient, f.profile.ID, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.engine.UpdateMedication(ctx, f.patient, first.ID, model.MedicationPatch{IsActive: boolPtr(true)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, "medication_exists", apperrors.RuleOf(err))

	list, err := f.engine.List(ctx, model.DomainMedication, f.patient, f.profile.ID)
	require.NoError(t, err)
	active := 0
	for _, s := range list {
		if s.IsActive {
			active++
			assert.Equal(t, second.ID, *s.MedicationID)
		}
	}
	assert.Equal(t, 1, active)
}

func TestCreateAfterDeactivatingOccupant(t *testing.T) {
	ctx := context.Background()

	fasting := daily("08:00")
	fasting.SugarType = sugar(model.SugarFasting)

	for _, tc := range []struct {
		domain model.Domain
		spec   model.ScheduleSpec
	}{
		{domain: model.DomainBP, spec: daily("08:00")},
		{domain: model.DomainSugar, spec: fasting},
	} {
		t.Run(string(tc.domain), func(t *testing.T) {
			f := newFixture(t)

			old, err := f.engine.Create(ctx, tc.domain, f.patient, f.profile.ID, tc.spec)
			require.NoError(t, err)
			_, err = f.engine.Update(ctx, tc.domain, f.patient, old[0].ID, model.SchedulePatch{IsActive: boolPtr(false)})
			require.NoError(t, err)

			fresh, err := f.engine.Create(ctx, tc.domain, f.patient, f.profile.ID, tc.spec)
			require.NoError(t, err)
			require.Len(t, fresh, 1)
			assert.NotEqual(t, old[0].ID, fresh[0].ID)
			assert.True(t, fresh[0].IsActive)
			assert.Equal(t, 2, f.store.ScheduleCount(tc.domain))

			list, err := f.engine.List(ctx, tc.domain, f.patient, f.profile.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)

			_, err = f.engine.Update(ctx, tc.domain, f.patient, old[0].ID, model.SchedulePatch{IsActive: boolPtr(true)})
			assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
			assert.Equal(t, "active_slot_taken", apperrors.RuleOf(err))
		})
	}
}

func TestUpdateRechecksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("08:00"))
	require.NoError(t, err)
	second, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("09:00"))
	require.NoError(t, err)

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, second[0].ID, model.SchedulePatch{ScheduledTime: strPtr("08:00")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	same, err := f.engine.Update(ctx, model.DomainBP, f.patient, second[0].ID, model.SchedulePatch{ScheduledTime: strPtr("09:00:00Z")})
	require.NoError(t, err)
	assert.Equal(t, model.MustClockTime("09:00"), same.ScheduledTime)

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, first[0].ID, model.SchedulePatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	moved, err := f.engine.Update(ctx, model.DomainBP, f.patient, second[0].ID, model.SchedulePatch{ScheduledTime: strPtr("08:00")})
	require.NoError(t, err)
	assert.Equal(t, model.MustClockTime("08:00"), moved.ScheduledTime)

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, first[0].ID, model.SchedulePatch{IsActive: boolPtr(true)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestUpdateRecurrenceIsJoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, model.ScheduleSpec{
		Times:      []string{"08:00"},
		Frequency:  model.FrequencyWeekly,
		CustomDays: []model.Weekday{model.Monday},
		StartDate:  date(2024, 1, 1),
	})
	require.NoError(t, err)
	id := created[0].ID

	freq := model.FrequencyDaily
	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{Frequency: &freq})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "custom_days must be null for DAILY frequency")

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{CustomDays: &[]model.Weekday{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom_days must be provided for WEEKLY frequency")

	updated, err := f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{
		Frequency:  &freq,
		CustomDays: &[]model.Weekday{},
	})
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyDaily, updated.Frequency)
	assert.Empty(t, updated.CustomDays)
}

func TestUpdateScalars(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	spec := daily("08:00")
	spec.DurationDays = intPtr(30)
	created, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, spec)
	require.NoError(t, err)
	id := created[0].ID

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{DurationDays: intPtr(0)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{DosageInstruction: strPtr("two tablets")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	updated, err := f.engine.Update(ctx, model.DomainBP, f.patient, id, model.SchedulePatch{ClearDuration: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DurationDays)

	_, err = f.engine.Update(ctx, model.DomainBP, f.patient, uuid.New(), model.SchedulePatch{ClearDuration: true})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.engine.Update(ctx, model.DomainSugar, f.patient, id, model.SchedulePatch{ClearDuration: true})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.engine.Update(ctx, model.DomainBP, model.NewActor(f.doctor.ID, model.RoleDoctor), id, model.SchedulePatch{ClearDuration: true})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, daily("08:00"))
	require.NoError(t, err)

	deleted, err := f.engine.Delete(ctx, model.DomainBP, f.patient, created[0].ID, f.profile.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.engine.Delete(ctx, model.DomainBP, f.patient, created[0].ID, f.profile.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 0, f.store.ScheduleCount(model.DomainBP))

	_, err = f.engine.Delete(ctx, model.DomainBP, model.NewActor(f.doctor.ID, model.RoleDoctor), created[0].ID, f.profile.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestResolveActiveSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early := daily("08:00")
	early.DurationDays = intPtr(10)
	a, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, early)
	require.NoError(t, err)

	late := daily("09:00")
	late.StartDate = date(2024, 1, 5)
	b, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, late)
	require.NoError(t, err)

	got, err := f.engine.ResolveActiveSchedule(ctx, model.DomainBP, f.profile.ID, date(2024, 1, 3))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a[0].ID, got.ID)

	got, err = f.engine.ResolveActiveSchedule(ctx, model.DomainBP, f.profile.ID, date(2024, 1, 6))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b[0].ID, got.ID)

	got, err = f.engine.ResolveActiveSchedule(ctx, model.DomainBP, f.profile.ID, date(2023, 12, 31))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDueOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, model.ScheduleSpec{
		Times:      []string{"08:00"},
		Frequency:  model.FrequencyWeekly,
		CustomDays: []model.Weekday{model.Monday, model.Wednesday},
		StartDate:  date(2024, 1, 1),
	})
	require.NoError(t, err)
	_, err = f.engine.Create(ctx, model.DomainBP, f.patient, f.profile.ID, model.ScheduleSpec{
		Times:     []string{"20:00"},
		Frequency: model.FrequencyMonthly,
		StartDate: date(2024, 1, 31),
	})
	require.NoError(t, err)

	due, err := f.engine.DueOn(ctx, model.DomainBP, f.profile.ID, date(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.MustClockTime("08:00"), due[0].ScheduledTime)

	due, err = f.engine.DueOn(ctx, model.DomainBP, f.profile.ID, date(2024, 1, 2))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = f.engine.DueOn(ctx, model.DomainBP, f.profile.ID, date(2024, 2, 29))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.MustClockTime("20:00"), due[0].ScheduledTime)
}
