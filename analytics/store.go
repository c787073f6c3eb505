package analytics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for analytics.
type Store struct {
	db *sql.DB
}

// sqliteTimeLayout is the text form timestamps are stored in. SQLite's
// date() and comparison operators understand it, unlike the driver's
// default time.Time encoding.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func sqliteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT,
			timestamp DATETIME NOT NULL,
			duration_sec INTEGER DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_path ON visits(path);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_timestamp ON bot_visits(timestamp);
	`)
	return err
}

// GetSetting returns the value for key, or "" if unset.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting upserts a settings value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// SaveVisit records a page view.
func (s *Store) SaveVisit(v *Visit) error {
	_, err := s.db.Exec(`INSERT INTO visits
		(visitor_id, ip_hash, browser, os, device, path, referrer, timestamp, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.IPHash, v.Browser, v.OS, v.Device, v.Path, v.Referrer, sqliteTime(v.Timestamp), v.DurationSec)
	return err
}

// SaveBotVisit records a bot page view.
func (s *Store) SaveBotVisit(v *BotVisit) error {
	_, err := s.db.Exec(`INSERT INTO bot_visits
		(bot_name, ip_hash, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		v.BotName, v.IPHash, v.UserAgent, v.Path, sqliteTime(v.Timestamp))
	return err
}

// UpdateVisitDuration sets the duration of the visitor's most recent
// visit to path. Unload beacons call this instead of inserting a row.
func (s *Store) UpdateVisitDuration(visitorID, path string, durationSec int) error {
	_, err := s.db.Exec(`UPDATE visits SET duration_sec = ?
		WHERE id = (SELECT id FROM visits WHERE visitor_id = ? AND path = ? ORDER BY timestamp DESC LIMIT 1)`,
		durationSec, visitorID, path)
	return err
}

// GetStats aggregates visit statistics for the time range.
func (s *Store) GetStats(from, to time.Time) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`SELECT COUNT(DISTINCT visitor_id), COUNT(*),
		CAST(COALESCE(AVG(CASE WHEN duration_sec > 0 THEN duration_sec END), 0) AS INTEGER)
		FROM visits WHERE timestamp >= ? AND timestamp < ?`, sqliteTime(from), sqliteTime(to)).
		Scan(&stats.UniqueVisitors, &stats.TotalViews, &stats.AvgDuration)
	if err != nil {
		return nil, fmt.Errorf("aggregate visits: %w", err)
	}

	stats.TopPages, err = s.pageStats(from, to)
	if err != nil {
		return nil, err
	}
	for _, q := range []struct {
		column string
		dst    *[]DimensionStat
	}{
		{"browser", &stats.Browsers},
		{"os", &stats.OS},
		{"device", &stats.Devices},
		{"referrer", &stats.Referrers},
	} {
		*q.dst, err = s.dimensionStats(q.column, from, to)
		if err != nil {
			return nil, err
		}
	}

	stats.DailyViews, err = s.dailyViews(from, to)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) pageStats(from, to time.Time) ([]PageStat, error) {
	rows, err := s.db.Query(`SELECT path, COUNT(*) AS views FROM visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY path ORDER BY views DESC, path ASC LIMIT 10`, sqliteTime(from), sqliteTime(to))
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	defer rows.Close()

	var out []PageStat
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) dimensionStats(column string, from, to time.Time) ([]DimensionStat, error) {
	// column comes from a fixed list in GetStats, never from user input.
	rows, err := s.db.Query(`SELECT `+column+`, COUNT(*) AS n FROM visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY `+column+` ORDER BY n DESC LIMIT 10`, sqliteTime(from), sqliteTime(to))
	if err != nil {
		return nil, fmt.Errorf("%s stats: %w", column, err)
	}
	defer rows.Close()

	var out []DimensionStat
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) dailyViews(from, to time.Time) ([]DailyView, error) {
	rows, err := s.db.Query(`SELECT date(timestamp) AS d, COUNT(*) FROM visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY d ORDER BY d ASC`, sqliteTime(from), sqliteTime(to))
	if err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	defer rows.Close()

	var out []DailyView
	for rows.Next() {
		var d DailyView
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RealtimeVisitors counts distinct visitors in the trailing window.
func (s *Store) RealtimeVisitors(window time.Duration) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE timestamp >= ?`,
		sqliteTime(time.Now().Add(-window))).Scan(&n)
	return n, err
}

// DeleteOlderThan removes visits and bot visits older than the retention
// period and returns the number of rows deleted.
func (s *Store) DeleteOlderThan(retentionDays int) (int64, error) {
	cutoff := sqliteTime(time.Now().AddDate(0, 0, -retentionDays))
	total := int64(0)
	for _, table := range []string{"visits", "bot_visits"} {
		res, err := s.db.Exec(`DELETE FROM `+table+` WHERE timestamp < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// StartCleanupScheduler periodically enforces the retention policy.
// The returned function stops the scheduler.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.DeleteOlderThan(retentionDays); err != nil {
					fmt.Fprintf(os.Stderr, "analytics cleanup: %v\n", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
