package analytics

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.GetSetting("hash_salt")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got != "" {
		t.Errorf("unset setting = %q, want empty", got)
	}

	if err := s.SetSetting("hash_salt", "abc123"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	got, err = s.GetSetting("hash_salt")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got != "abc123" {
		t.Errorf("setting = %q, want abc123", got)
	}
}

func sampleVisit(visitorID, path string, ts time.Time) *Visit {
	return &Visit{
		VisitorID: visitorID,
		IPHash:    "iphash",
		Browser:   "Firefox",
		OS:        "Linux",
		Device:    "Desktop",
		Path:      path,
		Referrer:  "Direct",
		Timestamp: ts,
	}
}

func TestSaveVisitAndGetStats(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	for _, v := range []*Visit{
		sampleVisit("alice", "/posts/rsa/", now.Add(-time.Hour)),
		sampleVisit("alice", "/posts/go-slices/", now.Add(-30*time.Minute)),
		sampleVisit("bob", "/posts/rsa/", now.Add(-10*time.Minute)),
	} {
		if err := s.SaveVisit(v); err != nil {
			t.Fatalf("SaveVisit failed: %v", err)
		}
	}

	stats, err := s.GetStats(now.AddDate(0, 0, -7), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", stats.UniqueVisitors)
	}
	if stats.TotalViews != 3 {
		t.Errorf("TotalViews = %d, want 3", stats.TotalViews)
	}
	if len(stats.TopPages) == 0 || stats.TopPages[0].Path != "/posts/rsa/" || stats.TopPages[0].Views != 2 {
		t.Errorf("TopPages = %v", stats.TopPages)
	}
	if len(stats.Browsers) != 1 || stats.Browsers[0].Name != "Firefox" {
		t.Errorf("Browsers = %v", stats.Browsers)
	}
	if len(stats.DailyViews) == 0 {
		t.Fatal("DailyViews should not be empty")
	}
	// date(timestamp) only works when timestamps are stored in a form
	// SQLite's date functions understand; a NULL bucket means they are not.
	for _, d := range stats.DailyViews {
		if _, err := time.Parse("2006-01-02", d.Date); err != nil {
			t.Errorf("DailyViews date %q is not a calendar day: %v", d.Date, err)
		}
	}
	if total := stats.DailyViews[0].Views; len(stats.DailyViews) == 1 && total != 3 {
		t.Errorf("single-day Views = %d, want 3", total)
	}
}

func TestUpdateVisitDuration(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	if err := s.SaveVisit(sampleVisit("alice", "/posts/rsa/", now.Add(-time.Minute))); err != nil {
		t.Fatalf("SaveVisit failed: %v", err)
	}
	if err := s.UpdateVisitDuration("alice", "/posts/rsa/", 42); err != nil {
		t.Fatalf("UpdateVisitDuration failed: %v", err)
	}

	stats, err := s.GetStats(now.AddDate(0, 0, -1), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.AvgDuration != 42 {
		t.Errorf("AvgDuration = %d, want 42", stats.AvgDuration)
	}
	// A duration beacon must not create a second row.
	if stats.TotalViews != 1 {
		t.Errorf("TotalViews = %d, want 1", stats.TotalViews)
	}
}

func TestRealtimeVisitors(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	if err := s.SaveVisit(sampleVisit("alice", "/", now.Add(-time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveVisit(sampleVisit("bob", "/", now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	n, err := s.RealtimeVisitors(5 * time.Minute)
	if err != nil {
		t.Fatalf("RealtimeVisitors failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RealtimeVisitors = %d, want 1", n)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	if err := s.SaveVisit(sampleVisit("old", "/", now.AddDate(0, 0, -400))); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveVisit(sampleVisit("new", "/", now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBotVisit(&BotVisit{
		BotName: "Googlebot", IPHash: "x", UserAgent: "Googlebot", Path: "/",
		Timestamp: now.AddDate(0, 0, -400),
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteOlderThan(365)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	stats, err := s.GetStats(now.AddDate(-2, 0, 0), now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalViews != 1 {
		t.Errorf("TotalViews after cleanup = %d, want 1", stats.TotalViews)
	}
}

func TestInitSalt(t *testing.T) {
	s := setupTestStore(t)
	if err := InitSalt(s); err != nil {
		t.Fatalf("InitSalt failed: %v", err)
	}
	stored, err := s.GetSetting("hash_salt")
	if err != nil {
		t.Fatal(err)
	}
	if stored == "" {
		t.Fatal("InitSalt should persist a generated salt")
	}
	if got := getSalt(); got != stored {
		t.Errorf("in-memory salt %q != stored %q", got, stored)
	}
}
