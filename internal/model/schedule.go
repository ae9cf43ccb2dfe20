package model

import (
	"time"

	"github.com/google/uuid"
)

// Domain names one of the schedule families sharing the recurrence engine.
type Domain string

const (
	DomainBP         Domain = "BP"
	DomainSugar      Domain = "SUGAR"
	DomainMedication Domain = "MEDICATION"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type SugarType string

const (
	SugarFasting  SugarType = "FASTING"
	SugarRandom   SugarType = "RANDOM"
	SugarPostMeal SugarType = "POST_MEAL"
)

// Schedule is one recurring reading or dose reminder at a single time of
// day. Domain specific columns are nil for the other domains.
type Schedule struct {
	Base
	Domain            Domain     `db:"domain" json:"domain"`
	PatientProfileID  uuid.UUID  `db:"patient_profile_id" json:"patient_profile_id"`
	ScheduledTime     ClockTime  `db:"scheduled_time" json:"scheduled_time"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	DurationDays      *int       `db:"duration_days" json:"duration_days,omitempty"`
	Frequency         Frequency  `db:"frequency" json:"frequency"`
	CustomDays        Weekdays   `db:"custom_days" json:"custom_days,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	CreatedBy         uuid.UUID  `db:"created_by" json:"created_by"`
	SugarType         *SugarType `db:"sugar_type" json:"sugar_type,omitempty"`
	MedicationID      *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`
	DosageInstruction *string    `db:"dosage_instruction" json:"dosage_instruction,omitempty"`
}

// EndDate is the last day of the schedule window, nil when unbounded.
func (s *Schedule) EndDate() *time.Time {
	if s.DurationDays == nil {
		return nil
	}
	end := DateOf(s.StartDate).AddDate(0, 0, *s.DurationDays-1)
	return &end
}

// Covers reports whether day falls inside [start_date, start_date+duration-1].
func (s *Schedule) Covers(day time.Time) bool {
	d := DateOf(day)
	if d.Before(DateOf(s.StartDate)) {
		return false
	}
	if end := s.EndDate(); end != nil && d.After(*end) {
		return false
	}
	return true
}

// OccursOn reports whether the recurrence fires on day, ignoring is_active.
// A monthly schedule started on the 31st fires on the last day of shorter
// months.
func (s *Schedule) OccursOn(day time.Time) bool {
	if !s.Covers(day) {
		return false
	}
	d := DateOf(day)
	switch s.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return s.CustomDays.Contains(WeekdayOf(d.Weekday()))
	case FrequencyMonthly:
		want := s.StartDate.Day()
		if last := daysIn(d.Year(), d.Month()); want > last {
			want = last
		}
		return d.Day() == want
	}
	return false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SlotKey identifies the slot an active schedule occupies. Fields a domain
// does not key on are left zero.
type SlotKey struct {
	Domain           Domain
	PatientProfileID uuid.UUID
	MedicationID     uuid.UUID
	Time             ClockTime
	SugarType        SugarType
	StartDate        string
}

// ScheduleSpec is the input for creating one schedule per listed time.
type ScheduleSpec struct {
	Times             []string   `json:"scheduled_times" validate:"required,min=1,dive,required"`
	Frequency         Frequency  `json:"frequency" validate:"required"`
	CustomDays        []Weekday  `json:"custom_days"`
	StartDate         time.Time  `json:"start_date"`
	DurationDays      *int       `json:"duration_days"`
	SugarType         *SugarType `json:"sugar_type" validate:"omitempty,oneof=FASTING RANDOM POST_MEAL"`
	MedicationID      *uuid.UUID `json:"medication_id"`
	DosageInstruction *string    `json:"dosage_instruction" validate:"omitempty,min=2,max=200"`
}

// SchedulePatch carries the fields an update replaces; nil means unchanged.
// CustomDays set to an empty slice clears the stored days.
type SchedulePatch struct {
	ScheduledTime     *string    `json:"scheduled_time"`
	StartDate         *time.Time `json:"start_date"`
	DurationDays      *int       `json:"duration_days"`
	ClearDuration     bool       `json:"clear_duration"`
	Frequency         *Frequency `json:"frequency"`
	CustomDays        *[]Weekday `json:"custom_days"`
	IsActive          *bool      `json:"is_active"`
	SugarType         *SugarType `json:"sugar_type" validate:"omitempty,oneof=FASTING RANDOM POST_MEAL"`
	DosageInstruction *string    `json:"dosage_instruction" validate:"omitempty,min=2,max=200"`
}
