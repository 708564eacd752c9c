package ui

import (
	"testing"
	"time"

	"github.com/potrolco/tarsdeck/internal/tars"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"negative", -5 * time.Second, "0s"},
		{"seconds", 12 * time.Second, "12s"},
		{"minutes", 4*time.Minute + 5*time.Second, "4m05s"},
		{"hours", time.Hour + 2*time.Minute + 30*time.Second, "1h02m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatDuration(tc.in); got != tc.want {
				t.Fatalf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tc := range cases {
		if got := formatAge(tc.in, now); got != tc.want {
			t.Fatalf("formatAge(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWorkerRow(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	active := tars.Worker{
		ID:          "W0",
		Name:        "Worker-0",
		CurrentFile: "/library/films/Heat (1995).mkv",
		StartTime:   tars.Timestamp{Time: now.Add(-90 * time.Second)},
		Subprocess:  &tars.WorkerSubprocess{Percent: "42"},
	}
	row := workerRow(active, now)
	want := []string{"Worker-0", "active", "42%", "1m30s", "Heat (1995).mkv"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}

	paused := tars.Worker{ID: "W1", Paused: true, Subprocess: &tars.WorkerSubprocess{Percent: "10"}}
	row = workerRow(paused, now)
	if row[0] != "W1" || row[1] != "paused" || row[2] != "" {
		t.Fatalf("paused row = %v", row)
	}
}

func TestHistoryRow(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	task := tars.HistoryTask{
		ID:          7,
		AbsPath:     "/library/a.mkv",
		TaskSuccess: false,
		StartTime:   tars.Timestamp{Time: now.Add(-10 * time.Minute)},
		FinishTime:  tars.Timestamp{Time: now.Add(-4 * time.Minute)},
	}
	row := historyRow(task, now)
	want := []string{"7", "failed", "4m ago", "6m00s", "a.mkv"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Nightfox"); got != "Slate" {
		t.Fatalf("NextTheme(Nightfox) = %q", got)
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q", got)
	}
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme fallback = %q", got)
	}
}
