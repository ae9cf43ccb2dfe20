package schedule

import (
	"fmt"
	"time"

	"github.com/jwalitptl/care-api/internal/model"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

const maxDurationDays = 3650

// ValidateRecurrence checks frequency and custom_days as one pair. Every
// write that touches either field goes through here.
func ValidateRecurrence(frequency model.Frequency, customDays []model.Weekday) error {
	if !frequency.Valid() {
		return apperrors.Validation("frequency", fmt.Sprintf("unknown frequency %q", frequency))
	}
	for _, d := range customDays {
		if !d.Valid() {
			return apperrors.Validation("custom_days", fmt.Sprintf("unknown weekday %q", d))
		}
	}

	switch frequency {
	case model.FrequencyDaily:
		if len(customDays) != 0 {
			return apperrors.Validation("custom_days", "custom_days must be null for DAILY frequency")
		}
	case model.FrequencyWeekly:
		if len(customDays) == 0 {
			return apperrors.Validation("custom_days", "custom_days must be provided for WEEKLY frequency")
		}
	case model.FrequencyMonthly:
		if len(customDays) != 0 {
			return apperrors.Validation("custom_days", "custom_days must be null for MONTHLY frequency")
		}
	}
	return nil
}

// ValidateDuration accepts an unbounded window or 1..3650 days.
func ValidateDuration(durationDays *int) error {
	if durationDays == nil {
		return nil
	}
	if *durationDays < 1 || *durationDays > maxDurationDays {
		return apperrors.Validation("duration_days",
			fmt.Sprintf("duration_days must be between 1 and %d", maxDurationDays))
	}
	return nil
}

func ValidateStartDate(startDate time.Time) error {
	if startDate.IsZero() {
		return apperrors.Validation("start_date", "start_date is required")
	}
	if model.DateOf(startDate).Before(model.MinStartDate) {
		return apperrors.Validation("start_date",
			fmt.Sprintf("start_date must be on or after %s", model.DateKey(model.MinStartDate)))
	}
	return nil
}

// parseTimes normalizes each time to HH:MM and rejects repeats, which would
// otherwise collide with each other inside the same batch.
func parseTimes(raw []string) ([]model.ClockTime, error) {
	if len(raw) == 0 {
		return nil, apperrors.Validation("scheduled_times", "at least one scheduled time is required")
	}

	seen := make(map[model.ClockTime]bool, len(raw))
	out := make([]model.ClockTime, 0, len(raw))
	for _, s := range raw {
		t, err := model.ParseClockTime(s)
		if err != nil {
			return nil, apperrors.Validation("scheduled_times", err.Error())
		}
		if seen[t] {
			return nil, apperrors.Validation("scheduled_times", fmt.Sprintf("duplicate scheduled time %s", t))
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}
