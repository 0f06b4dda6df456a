package atom

import (
	"testing"
	"time"
)

func TestParseRFC3339(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2005-01-01T00:00:00Z", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2005-01-01T00:00:00z", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		// A positive offset means the civil time is ahead of UTC.
		{"2005-01-01T05:30:00+05:30", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2005-01-01T05:30:00+0530", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2004-12-31T19:00:00-05:00", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2004-12-31T19:00:00-0500", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2005-01-01T00:00:00.5Z", time.Date(2005, 1, 1, 0, 0, 0, 500000000, time.UTC)},
		{"2005-01-01T00:00:00.123456789Z", time.Date(2005, 1, 1, 0, 0, 0, 123456789, time.UTC)},
		{"2008-02-29T12:34:56Z", time.Date(2008, 2, 29, 12, 34, 56, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseRFC3339(tt.input)
		if err != nil {
			t.Errorf("ParseRFC3339(%q) returned error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseRFC3339(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseRFC3339LeapSecond(t *testing.T) {
	// Seconds may run to 60; the value is normalized rather than
	// rejected.
	got, err := ParseRFC3339("2005-12-31T23:59:60Z")
	if err != nil {
		t.Fatalf("leap second rejected: %v", err)
	}
	want := time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRFC3339Malformed(t *testing.T) {
	inputs := []string{
		"",
		"not a date",
		"2005-01-01",
		"2005-01-01 00:00:00Z",
		"2005-01-01T00:00:00",
		"2005-01-01T00:00:00+5:30",
		"2005-13-01T00:00:00Z",
		"2005-01-32T00:00:00Z",
		"2005-01-01T24:00:00Z",
		"2005-01-01T00:61:00Z",
		"2005-01-01T00:00:61Z",
		"2005-01-01T00:00:00+25:00",
	}
	for _, input := range inputs {
		if _, err := ParseRFC3339(input); err == nil {
			t.Errorf("ParseRFC3339(%q) succeeded, want error", input)
		}
	}
}

func TestRFC3339RoundTrip(t *testing.T) {
	inputs := []string{
		"2005-01-01T00:00:00Z",
		"2005-06-15T12:30:45+05:30",
		"2005-06-15T12:30:45-08:00",
		"2005-06-15T12:30:45.25Z",
		"1999-12-31T23:59:59+00:00",
	}
	for _, input := range inputs {
		parsed, err := ParseRFC3339(input)
		if err != nil {
			t.Fatalf("ParseRFC3339(%q): %v", input, err)
		}
		reparsed, err := ParseRFC3339(FormatRFC3339(parsed))
		if err != nil {
			t.Fatalf("re-parsing formatted %q: %v", FormatRFC3339(parsed), err)
		}
		// Formatting uses local civil time, so only the instant is
		// preserved, not the offset or the sub-second fraction's
		// textual form.
		if !reparsed.Truncate(time.Second).Equal(parsed.Truncate(time.Second)) {
			t.Errorf("round trip of %q changed instant: %v != %v", input, reparsed, parsed)
		}
	}
}

func TestFormatRFC3339Shape(t *testing.T) {
	formatted := FormatRFC3339(time.Date(2005, 6, 15, 12, 30, 45, 0, time.UTC))
	if _, err := ParseRFC3339(formatted); err != nil {
		t.Errorf("FormatRFC3339 output %q does not re-parse: %v", formatted, err)
	}
}
