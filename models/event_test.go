package models

import (
	"context"
	"testing"
	"time"
)

func TestCreateEventRejectsInvertedWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		end  time.Time
	}{
		{name: "end before start", end: start.Add(-time.Hour)},
		{name: "zero-length slot", end: start},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateEvent(context.Background(), "owner", 1, &NewEvent{
				Task:      "stocktake",
				Employee:  "Lan",
				StartTime: start,
				EndTime:   tc.end,
			})
			if err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
