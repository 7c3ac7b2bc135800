package units

import (
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

const dayKeyLayout = "2006-01-02"

// StartOfDay is local midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves by calendar days, so DST shifts do not skew the result.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// DayStarts lists every calendar-day start in [start, end).
func DayStarts(start, end time.Time) []time.Time {
	var out []time.Time
	for d := StartOfDay(start); d.Before(end); d = AddDays(d, 1) {
		out = append(out, d)
	}
	return out
}

// DayKey formats t's calendar day as yyyy-MM-dd.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ISO8601 is the UTC, second-precision rendering used in dedup keys and rows.
func ISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ZoneName returns an IANA zone name for loc that a database can resolve.
// time.Local reports itself as "Local", so it is resolved from TZ and then
// /etc/localtime, falling back to UTC.
func ZoneName(loc *time.Location) string {
	if loc == nil || loc == time.Local || loc.String() == "Local" {
		return localZoneName()
	}
	return loc.String()
}

// LocalLocation is time.Local under its IANA name.
func LocalLocation() *time.Location {
	loc, err := time.LoadLocation(localZoneName())
	if err != nil {
		return time.UTC
	}
	return loc
}

func localZoneName() string {
	if tz, ok := os.LookupEnv("TZ"); ok {
		tz = strings.TrimPrefix(tz, ":")
		if tz == "" {
			return "UTC"
		}
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			name := target[i+len("zoneinfo/"):]
			if _, err := time.LoadLocation(name); err == nil {
				return name
			}
		}
	}
	return "UTC"
}
