package followup

import (
	"testing"
	"time"
)

func TestComputeTriggerTimeRelative(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input ReminderInput
		want  time.Time
	}{
		{
			name:  "minutes",
			input: ReminderInput{TriggerType: TriggerMinutes, Value: 30},
			want:  time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		},
		{
			name:  "hours",
			input: ReminderInput{TriggerType: TriggerHours, Value: 2},
			want:  time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
		},
		{
			name:  "days",
			input: ReminderInput{TriggerType: TriggerDays, Value: 3},
			want:  time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeTriggerTime(tc.input, due)
			if err != nil {
				t.Fatalf("ComputeTriggerTime error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestComputeTriggerTimeSpecific(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	got, err := ComputeTriggerTime(ReminderInput{TriggerType: TriggerSpecific, Date: &date}, due)
	if err != nil {
		t.Fatalf("ComputeTriggerTime error: %v", err)
	}
	if !got.Equal(date) {
		t.Fatalf("expected %v, got %v", date, got)
	}
}

func TestComputeTriggerTimeMissingValue(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	for _, trigger := range []string{TriggerMinutes, TriggerHours, TriggerDays} {
		if _, err := ComputeTriggerTime(ReminderInput{TriggerType: trigger}, due); err != ErrMissingValue {
			t.Fatalf("%s: expected ErrMissingValue, got %v", trigger, err)
		}
	}
}

func TestComputeTriggerTimeMissingDate(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	if _, err := ComputeTriggerTime(ReminderInput{TriggerType: TriggerSpecific}, due); err != ErrMissingDate {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}

	var zero time.Time
	if _, err := ComputeTriggerTime(ReminderInput{TriggerType: TriggerSpecific, Date: &zero}, due); err != ErrMissingDate {
		t.Fatalf("expected ErrMissingDate for zero date, got %v", err)
	}
}

func TestComputeTriggerTimeUnknownType(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if _, err := ComputeTriggerTime(ReminderInput{TriggerType: "weeks", Value: 1}, due); err == nil {
		t.Fatal("expected error for unknown trigger type")
	}
}

func TestBuildReminderValidatesChannel(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	if _, err := buildReminder("r1", ReminderInput{NotificationType: "sms", TriggerType: TriggerHours, Value: 1}, due); err == nil {
		t.Fatal("expected error for unknown notification type")
	}

	r, err := buildReminder("r1", ReminderInput{NotificationType: NotifyEmail, TriggerType: TriggerHours, Value: 1}, due)
	if err != nil {
		t.Fatalf("buildReminder error: %v", err)
	}
	if r.Sent {
		t.Fatal("new reminder must start unsent")
	}
	if !r.TriggerAt.Equal(due.Add(-time.Hour)) {
		t.Fatalf("unexpected trigger time: %v", r.TriggerAt)
	}
}
