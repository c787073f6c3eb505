package stanza

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding the derived post index. The
// Markdown files are the source of truth; the index exists so the preview
// server can answer post and tag queries without re-walking the tree.
// SyncPosts rebuilds it from a loaded content tree.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite index at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write, busy timeout so writers wait instead
	// of returning SQLITE_BUSY, synchronous=NORMAL is safe with WAL.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    slug TEXT PRIMARY KEY,
    year TEXT NOT NULL,
    path TEXT NOT NULL,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    tags TEXT NOT NULL,
    summary TEXT NOT NULL,
    content TEXT NOT NULL,
    draft INTEGER NOT NULL DEFAULT 0,
    math INTEGER NOT NULL DEFAULT 0
);
`)
	return err
}

// SyncPosts replaces the index contents with the given posts in a single
// transaction: rows whose slug disappeared from the tree are deleted,
// everything else is upserted.
func (s *Store) SyncPosts(posts []Post) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keep := make([]string, 0, len(posts))
	for _, p := range posts {
		keep = append(keep, p.Slug)
	}
	if len(keep) == 0 {
		if _, err := tx.Exec(`DELETE FROM posts`); err != nil {
			return err
		}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		args := make([]any, len(keep))
		for i, slug := range keep {
			args[i] = slug
		}
		if _, err := tx.Exec(`DELETE FROM posts WHERE slug NOT IN (`+placeholders+`)`, args...); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO posts
		(slug, year, path, title, date, tags, summary, content, draft, math)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range posts {
		if _, err := stmt.Exec(p.Slug, p.Year, p.Path, p.Title, p.Date,
			encodeTags(p.Tags), p.Summary, p.Content, boolInt(p.Draft), boolInt(p.Math)); err != nil {
			return fmt.Errorf("index %s: %w", p.Slug, err)
		}
	}
	return tx.Commit()
}

const postColumns = `slug, year, path, title, date, tags, summary, content, draft, math`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var p Post
	var tags string
	var draft, math int
	if err := row.Scan(&p.Slug, &p.Year, &p.Path, &p.Title, &p.Date,
		&tags, &p.Summary, &p.Content, &draft, &math); err != nil {
		return Post{}, err
	}
	p.Tags = decodeTags(tags)
	p.Draft = draft == 1
	p.Math = math == 1
	p.Link = "/posts/" + p.Slug + "/"
	return p, nil
}

// ListPosts returns all published posts ordered newest-first. If tag is
// non-empty, results are filtered to posts carrying that tag.
func (s *Store) ListPosts(tag string) ([]Post, error) {
	var rows *sql.Rows
	var err error
	if tag == "" {
		rows, err = s.db.Query(`SELECT ` + postColumns + ` FROM posts WHERE draft = 0 ORDER BY date DESC, slug ASC`)
	} else {
		normalized := normalizeTag(tag)
		rows, err = s.db.Query(`SELECT `+postColumns+` FROM posts WHERE draft = 0 AND instr(lower(tags), ',' || ? || ',') > 0 ORDER BY date DESC, slug ASC`, normalized)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListDrafts returns draft posts ordered newest-first.
func (s *Store) ListDrafts() ([]Post, error) {
	rows, err := s.db.Query(`SELECT ` + postColumns + ` FROM posts WHERE draft = 1 ORDER BY date DESC, slug ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListTags returns a sorted, deduplicated slice of all tags from published posts.
func (s *Store) ListTags() ([]string, error) {
	rows, err := s.db.Query(`SELECT tags FROM posts WHERE draft = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		for _, t := range decodeTags(tags) {
			set[normalizeTag(t)] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var result []string
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

// GetPost returns a single published post by slug.
func (s *Store) GetPost(slug string) (Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ? AND draft = 0`, slug)
	return scanPost(row)
}

// GetPostAny returns a post by slug regardless of draft status, for the
// session-gated draft preview.
func (s *Store) GetPostAny(slug string) (Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// encodeTags stores tags as a comma-delimited string with sentinel commas
// so instr() can match whole tags, e.g. ",go,web,".
func encodeTags(tags []string) string {
	normalized := make([]string, len(tags))
	for i, t := range tags {
		normalized[i] = normalizeTag(t)
	}
	return "," + strings.Join(normalized, ",") + ","
}

func decodeTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
