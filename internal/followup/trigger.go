package followup

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingValue = errors.New("relative reminder requires a positive value")
	ErrMissingDate  = errors.New("specific reminder requires a date")
)

// ComputeTriggerTime resolves when a reminder should fire. Relative kinds
// count back from the follow-up date; the specific kind carries its own
// absolute date.
func ComputeTriggerTime(reminder ReminderInput, followupDate time.Time) (time.Time, error) {
	switch reminder.TriggerType {
	case TriggerMinutes:
		if reminder.Value <= 0 {
			return time.Time{}, ErrMissingValue
		}
		return followupDate.Add(-time.Duration(reminder.Value) * time.Minute), nil
	case TriggerHours:
		if reminder.Value <= 0 {
			return time.Time{}, ErrMissingValue
		}
		return followupDate.Add(-time.Duration(reminder.Value) * time.Hour), nil
	case TriggerDays:
		if reminder.Value <= 0 {
			return time.Time{}, ErrMissingValue
		}
		return followupDate.AddDate(0, 0, -reminder.Value), nil
	case TriggerSpecific:
		if reminder.Date == nil || reminder.Date.IsZero() {
			return time.Time{}, ErrMissingDate
		}
		return *reminder.Date, nil
	default:
		return time.Time{}, fmt.Errorf("unknown trigger type %q", reminder.TriggerType)
	}
}

// buildReminder validates one reminder input in isolation and materializes it
// with a computed trigger time.
func buildReminder(id string, input ReminderInput, followupDate time.Time) (Reminder, error) {
	if _, ok := validNotificationTypes[input.NotificationType]; !ok {
		return Reminder{}, fmt.Errorf("unknown notification type %q", input.NotificationType)
	}
	if _, ok := validTriggerTypes[input.TriggerType]; !ok {
		return Reminder{}, fmt.Errorf("unknown trigger type %q", input.TriggerType)
	}

	triggerAt, err := ComputeTriggerTime(input, followupDate)
	if err != nil {
		return Reminder{}, err
	}

	return Reminder{
		ID:               id,
		NotificationType: input.NotificationType,
		TriggerType:      input.TriggerType,
		Value:            input.Value,
		Date:             input.Date,
		TriggerAt:        triggerAt,
		Sent:             false,
	}, nil
}
