package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/clinicflow/reminders/internal/reminder"
)

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 3, 14, 17, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printSummary(&buf, &reminder.RunSummary{
		RunID:      uuid.MustParse("6f1c2b9e-8d4a-4c3e-9b7a-2f5d1e0c3a41"),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Candidates: 4,
		Sent:       2,
		Failed:     1,
		Skipped:    1,
		Cap:        200,
	})

	out := buf.String()
	assert.Contains(t, out, "run 6f1c2b9e-8d4a-4c3e-9b7a-2f5d1e0c3a41")
	assert.Contains(t, out, "sent:       2")
	assert.Contains(t, out, "duration:   1.5s")
}

func TestPrintSummary_Aborted(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &reminder.RunSummary{RunID: uuid.New(), Candidates: 201, Cap: 200, Aborted: true})

	assert.Contains(t, buf.String(), "ABORTED: 201 candidates exceed the safety cap of 200")
	assert.False(t, strings.Contains(buf.String(), "sent:"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a@clinic.cd", "b@clinic.cd"}, splitList(" a@clinic.cd, ,b@clinic.cd "))
	assert.Nil(t, splitList(""))
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"reset without id", []string{"reset-reminder"}},
		{"reset with bad id", []string{"reset-reminder", "not-a-uuid"}},
		{"test-sms without phone", []string{"test-sms"}},
		{"send with extra args", []string{"send", "now"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := resetReminderCmd()
			switch tt.args[0] {
			case "test-sms":
				cmd = testSMSCmd()
			case "send":
				cmd = sendCmd()
			}
			cmd.SetArgs(tt.args[1:])
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			assert.Error(t, cmd.Execute())
		})
	}
}
