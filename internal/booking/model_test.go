package booking

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
	}{
		{"SCHEDULED", StatusScheduled},
		{"scheduled", StatusScheduled},
		{"Confirmed", StatusConfirmed},
		{"in_progress", StatusInProgress},
		{"COMPLETED", StatusCompleted},
		{"cancelled", StatusCancelled},
		{"no_show", StatusNoShow},
		{"  confirmed  ", StatusConfirmed},
	}

	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseStatusRejectsUnknownLabels(t *testing.T) {
	for _, in := range []string{"", "ARCHIVED", "done", "CANCELED"} {
		if _, err := ParseStatus(in); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) err = %v, want ErrInvalidStatus", in, err)
		}
	}
}
