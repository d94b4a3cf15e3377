package util

import (
    "testing"
    "time"
)

func TestParsePeriod(t *testing.T) {
    cases := []struct {
        in   string
        want Period
    }{
        {"1y", Period{Years: 1}},
        {"6mo", Period{Months: 6}},
        {"1mo", Period{Months: 1}},
        {"5d", Period{Days: 5}},
        {"2w", Period{Days: 14}},
    }
    for _, c := range cases {
        got, err := ParsePeriod(c.in)
        if err != nil {
            t.Fatalf("%s: unexpected error %v", c.in, err)
        }
        if got != c.want {
            t.Fatalf("%s: got %+v want %+v", c.in, got, c.want)
        }
    }
}

func TestParsePeriodInvalid(t *testing.T) {
    for _, in := range []string{"", "y", "0d", "-1y", "12", "3h"} {
        if _, err := ParsePeriod(in); err == nil {
            t.Fatalf("%q: expected error", in)
        }
    }
}

func TestPeriodStart(t *testing.T) {
    end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
    got := Period{Years: 1}.Start(end)
    if !got.Equal(time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected start %v", got)
    }
}

func TestNextClock(t *testing.T) {
    now := time.Date(2024, 10, 10, 10, 10, 0, 0, time.UTC)
    if got := NextClock(now, 0, 0); !got.Equal(time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected next %v", got)
    }
    if got := NextClock(now, 12, 30); !got.Equal(time.Date(2024, 10, 10, 12, 30, 0, 0, time.UTC)) {
        t.Fatalf("unexpected next %v", got)
    }
}

func TestParseClock(t *testing.T) {
    h, m, err := ParseClock("00:00")
    if err != nil || h != 0 || m != 0 {
        t.Fatalf("unexpected %d %d %v", h, m, err)
    }
    if _, _, err := ParseClock("25:00"); err == nil {
        t.Fatalf("expected error")
    }
}

func TestParseBoolDefault(t *testing.T) {
    if !ParseBoolDefault("", true) || ParseBoolDefault("false", true) || !ParseBoolDefault("junk", true) {
        t.Fatalf("unexpected bool parsing")
    }
}
