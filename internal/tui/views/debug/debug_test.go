package debug

import (
	"strings"
	"testing"
	"time"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindSession, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindSession {
		t.Errorf("Kind = %q, want %q", m.Entries[0].Kind, KindSession)
	}
}

func TestAddUsesClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	m := Model{now: func() time.Time { return at }}
	m.Addf(KindGPS, "fix %d", 3)
	if !m.Entries[0].Time.Equal(at) {
		t.Errorf("Time = %v, want %v", m.Entries[0].Time, at)
	}
	if m.Entries[0].Message != "fix 3" {
		t.Errorf("Message = %q, want %q", m.Entries[0].Message, "fix 3")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindTelemetry, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindGPS, "msg")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("Offset = %d, want 5", m.Offset)
	}
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("Offset = %d, want 2", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("Offset = %d, want 0", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(KindGPS, "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("Offset = %d, want 4", m.Offset)
	}
}

func TestCount(t *testing.T) {
	m := New()
	m.Add(KindError, "a")
	m.Add(KindGPS, "b")
	m.Add(KindError, "c")
	if got := m.Count(KindError); got != 2 {
		t.Errorf("Count(err) = %d, want 2", got)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events'")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Add(KindSession, "connected")
	m.Add(KindError, "timeout")
	v := m.View(80, 20)
	for _, want := range []string{"connected", "timeout"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(KindGPS, "msg")
	}
	m.ScrollUp(5)
	m.Add(KindGPS, "new")
	if m.Offset != 0 {
		t.Error("adding an entry should reset scroll to 0")
	}
}
