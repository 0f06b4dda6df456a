package atom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// rfc3339Pattern accepts YYYY-MM-DDThh:mm:ss[.fraction](Z|±hh:mm|±hhmm).
// Seconds run to 60 so a leap second parses; the value is stored
// literally and normalized by the time package.
var rfc3339Pattern = regexp.MustCompile(
	`^(\d{4})-(\d{2})-(\d{2})[Tt](\d{2}):(\d{2}):(\d{2})(\.\d+)?(?:[Zz]|([+-])(\d{2}):?(\d{2}))$`)

// ParseRFC3339 parses a timestamp in the profile of ISO 8601 used by
// Atom and normalizes it to UTC. A string that does not match the
// profile is an error, never a zero value.
func ParseRFC3339(s string) (time.Time, error) {
	m := rfc3339Pattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: not a valid RFC 3339 date-time", s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])

	var nsec int
	if frac := strings.TrimPrefix(m[7], "."); frac != "" {
		// Scale the fraction to nanoseconds, truncating extra digits.
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, _ = strconv.Atoi(frac[:9])
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: field out of range", s)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, time.UTC)

	if m[8] != "" {
		// Numeric offset. The civil fields above were taken as UTC, so
		// a timestamp written at +hh:mm is hh:mm ahead of the instant
		// it actually denotes and must be pulled back by the offset
		// (and pushed forward for a negative one).
		offHour, _ := strconv.Atoi(m[9])
		offMin, _ := strconv.Atoi(m[10])
		if offHour > 23 || offMin > 59 {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: offset out of range", s)
		}
		direction := time.Duration(-1)
		if m[8] == "-" {
			direction = 1
		}
		t = t.Add(direction * (time.Duration(offHour)*time.Hour + time.Duration(offMin)*time.Minute))
	}
	return t, nil
}

// FormatRFC3339 renders t in local civil time with the numeric UTC
// offset in effect at that instant.
func FormatRFC3339(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05-07:00")
}
