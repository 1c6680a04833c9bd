package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReportingPeriod is the calendar month whose transactions are being looked for.
type ReportingPeriod struct {
	Month time.Month
}

func CurrentPeriod(now time.Time, loc *time.Location) ReportingPeriod {
	if loc != nil {
		now = now.In(loc)
	}
	return ReportingPeriod{Month: now.Month()}
}

// ParsePeriod accepts a full month name or its three-letter abbreviation.
func ParsePeriod(s string) (ReportingPeriod, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return ReportingPeriod{}, fmt.Errorf("empty reporting month")
	}
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || name == full[:3] {
			return ReportingPeriod{Month: m}, nil
		}
	}
	return ReportingPeriod{}, fmt.Errorf("unknown reporting month %q", s)
}

func (p ReportingPeriod) Full() string {
	return strings.ToLower(p.Month.String())
}

func (p ReportingPeriod) Abbrev() string {
	return p.Full()[:3]
}

func (p ReportingPeriod) String() string {
	return p.Month.String()
}

// Matches reports whether text mentions the period by full name or abbreviation.
// Matching is case-insensitive.
func (p ReportingPeriod) Matches(text string) bool {
	if p.Month < time.January || p.Month > time.December {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, p.Full()) || strings.Contains(lower, p.Abbrev())
}
