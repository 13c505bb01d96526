package models

import (
	"testing"
	"time"
)

func TestValidSlot(t *testing.T) {
	if !ValidSlot(SlotMorning) || !ValidSlot(SlotEvening) {
		t.Error("expected the two scheduling windows to be valid")
	}
	for _, s := range []string{"", "08:00-12:01", "12:00-16:00", "morning"} {
		if ValidSlot(s) {
			t.Errorf("expected %q invalid", s)
		}
	}
}

func TestDateOf_NormalizesToMidnightUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2024, 6, 10, 23, 45, 12, 999, loc)

	got := DateOf(in)
	want := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf(%v) = %v, want %v", in, got, want)
	}

	// Two timestamps on the same calendar day compare equal after
	// normalization regardless of their wall-clock parts.
	other := time.Date(2024, 6, 10, 1, 0, 0, 0, loc)
	if !DateOf(in).Equal(DateOf(other)) {
		t.Error("expected same-day timestamps to normalize equal")
	}
}
