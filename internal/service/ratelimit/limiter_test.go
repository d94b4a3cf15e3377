package ratelimit

import (
    "testing"
    "time"
)

func TestAllowPerKey(t *testing.T) {
    l := New(time.Minute)
    now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    l.now = func() time.Time { return now }

    if !l.Allow("a", 2, 1) || !l.Allow("a", 2, 1) {
        t.Fatalf("burst of 2 should pass")
    }
    if l.Allow("a", 2, 1) {
        t.Fatalf("third call should be limited")
    }
    if !l.Allow("b", 2, 1) {
        t.Fatalf("other key must not share the bucket")
    }
    now = now.Add(time.Second)
    if !l.Allow("a", 2, 1) {
        t.Fatalf("bucket should refill after one second")
    }
}

func TestIdleBucketsAreDropped(t *testing.T) {
    l := New(time.Minute)
    now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    l.now = func() time.Time { return now }

    l.Allow("a", 1, 1)
    l.Allow("b", 1, 1)
    now = now.Add(2 * time.Minute)
    l.Allow("c", 1, 1)
    if got := l.Len(); got != 1 {
        t.Fatalf("live buckets=%d, want 1", got)
    }
}
