package util

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestParseDateCalendar(t *testing.T) {
	got, ok := ParseDate("2024-04-15")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseDateRFC3339KeepsWrittenDay(t *testing.T) {
	got, ok := ParseDate("2024-04-15T23:30:00-05:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format("2006-01-02") != "2024-04-15" {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDateUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, v := range []int64{ts.Unix(), ts.UnixMilli()} {
		got, ok := ParseDate(strconv.FormatInt(v, 10))
		if !ok {
			t.Fatalf("expected ok for %d", v)
		}
		if got.Format("2006-01-02") != "2024-10-10" {
			t.Fatalf("unexpected day %v", got)
		}
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5"} {
		if _, ok := ParseDate(s); ok {
			t.Fatalf("expected failure for %q", s)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" aapl,,MSFT , ")
	if strings.Join(got, "|") != "aapl|MSFT" {
		t.Fatalf("got %q", got)
	}
	if len(SplitCSV("")) != 0 {
		t.Fatalf("expected empty")
	}
}
