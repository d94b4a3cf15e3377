package util

import (
    "fmt"
    "strconv"
    "strings"
    "time"
)

// Period is a calendar lookback such as "1y", "6mo" or "5d".
type Period struct {
    Years  int
    Months int
    Days   int
}

// ParsePeriod accepts <n>d, <n>w, <n>mo and <n>y.
func ParsePeriod(s string) (Period, error) {
    s = strings.TrimSpace(strings.ToLower(s))
    var unit string
    for _, u := range []string{"mo", "d", "w", "y"} {
        if strings.HasSuffix(s, u) {
            unit = u
            break
        }
    }
    if unit == "" {
        return Period{}, fmt.Errorf("period %q: missing unit", s)
    }
    n, err := strconv.Atoi(strings.TrimSuffix(s, unit))
    if err != nil || n <= 0 {
        return Period{}, fmt.Errorf("period %q: invalid count", s)
    }
    switch unit {
    case "d":
        return Period{Days: n}, nil
    case "w":
        return Period{Days: 7 * n}, nil
    case "mo":
        return Period{Months: n}, nil
    default:
        return Period{Years: n}, nil
    }
}

// MustParsePeriod panics on invalid input. Only for constants.
func MustParsePeriod(s string) Period {
    p, err := ParsePeriod(s)
    if err != nil {
        panic(err)
    }
    return p
}

// Start returns the beginning of the window that ends at end.
func (p Period) Start(end time.Time) time.Time {
    return end.AddDate(-p.Years, -p.Months, -p.Days)
}

func (p Period) String() string {
    switch {
    case p.Years > 0 && p.Months == 0 && p.Days == 0:
        return fmt.Sprintf("%dy", p.Years)
    case p.Months > 0 && p.Years == 0 && p.Days == 0:
        return fmt.Sprintf("%dmo", p.Months)
    default:
        return fmt.Sprintf("%dd", p.Years*365+p.Months*30+p.Days)
    }
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
    t, err := time.Parse("15:04", strings.TrimSpace(s))
    if err != nil {
        return 0, 0, fmt.Errorf("clock %q: %w", s, err)
    }
    return t.Hour(), t.Minute(), nil
}

// NextClock returns the first instant strictly after now at hour:minute in now's location.
func NextClock(now time.Time, hour, minute int) time.Time {
    next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
    if !next.After(now) {
        next = next.AddDate(0, 0, 1)
    }
    return next
}
