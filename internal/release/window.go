package release

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month of a specific year.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return MonthOf(t), nil
}

// Add returns the month n months after m.
func (m Month) Add(n int) Month {
	return MonthOf(time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the exclusive upper bound of the month.
func (m Month) End() time.Time {
	return m.Add(1).Start()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Matches reports whether free-form release text names this month and year,
// by abbreviation ("Nov") or full name ("November").
func (m Month) Matches(text string) bool {
	if !strings.Contains(text, strconv.Itoa(m.Year)) {
		return false
	}
	full := m.Month.String()
	return strings.Contains(text, full[:3]) || strings.Contains(text, full)
}

// Classification is the result of matching release text against a window.
type Classification int

// Window classes.
const (
	ClassNone Classification = iota
	ClassCurrent
	ClassTarget
	ClassOverrun
)

func (c Classification) String() string {
	switch c {
	case ClassCurrent:
		return "current"
	case ClassTarget:
		return "target"
	case ClassOverrun:
		return "overrun"
	default:
		return "none"
	}
}

// TargetWindow is the rolling three-month window a scan classifies against.
type TargetWindow struct {
	Current Month
	Target  Month
	Overrun Month
}

// NewTargetWindow computes the window for the month containing now.
func NewTargetWindow(now time.Time) TargetWindow {
	current := MonthOf(now)
	return TargetWindow{
		Current: current,
		Target:  current.Add(1),
		Overrun: current.Add(2),
	}
}

// Classify matches text against the current, target, and overrun months, in
// that order.
func (w TargetWindow) Classify(text string) Classification {
	switch {
	case w.Current.Matches(text):
		return ClassCurrent
	case w.Target.Matches(text):
		return ClassTarget
	case w.Overrun.Matches(text):
		return ClassOverrun
	default:
		return ClassNone
	}
}
