package workflow

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	initial := 10 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 10 * time.Second},
		{attempt: 2, want: 20 * time.Second},
		{attempt: 3, want: 40 * time.Second},
		{attempt: 4, want: 80 * time.Second},
		{attempt: 20, want: 10 * time.Minute},
	}
	for _, tc := range cases {
		got := Backoff(initial, tc.attempt)
		if got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
