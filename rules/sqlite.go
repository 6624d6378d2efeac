// ABOUTME: SQLite-backed RuleStore with an FTS5 index for hybrid retrieval.
// ABOUTME: Ranking blends bm25 relevance with an exact or prefix name-match boost.

package rules

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements RuleStore over a local SQLite database. The rules
// table is the source of truth; the FTS5 table mirrors name and content for
// ranked full-text retrieval.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a rules database at the given path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS rules (
			rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			name_lower TEXT NOT NULL,
			source TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			refs TEXT NOT NULL DEFAULT '[]',
			level INTEGER NOT NULL DEFAULT 0,
			school TEXT NOT NULL DEFAULT '',
			rarity TEXT NOT NULL DEFAULT '',
			UNIQUE (name_lower, type)
		);

		CREATE INDEX IF NOT EXISTS idx_rules_name_lower ON rules(name_lower);

		CREATE VIRTUAL TABLE IF NOT EXISTS rules_fts USING fts5(
			name, content, content='rules', content_rowid='rule_id'
		);

		CREATE TRIGGER IF NOT EXISTS rules_ai AFTER INSERT ON rules BEGIN
			INSERT INTO rules_fts(rowid, name, content) VALUES (new.rule_id, new.name, new.content);
		END;
		CREATE TRIGGER IF NOT EXISTS rules_ad AFTER DELETE ON rules BEGIN
			INSERT INTO rules_fts(rules_fts, rowid, name, content) VALUES ('delete', old.rule_id, old.name, old.content);
		END;
		CREATE TRIGGER IF NOT EXISTS rules_au AFTER UPDATE ON rules BEGIN
			INSERT INTO rules_fts(rules_fts, rowid, name, content) VALUES ('delete', old.rule_id, old.name, old.content);
			INSERT INTO rules_fts(rowid, name, content) VALUES (new.rule_id, new.name, new.content);
		END;`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces a rule keyed by (lowercase name, type).
func (s *SQLiteStore) Upsert(entry RuleEntry) error {
	refs, err := json.Marshal(entry.References)
	if err != nil {
		return fmt.Errorf("marshal references: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO rules (name, name_lower, source, type, content, refs, level, school, rarity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name_lower, type) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			content = excluded.content,
			refs = excluded.refs,
			level = excluded.level,
			school = excluded.school,
			rarity = excluded.rarity`,
		entry.Name, strings.ToLower(entry.Name), entry.Source, entry.Type,
		entry.Content, string(refs), entry.Level, entry.School, entry.Rarity)
	if err != nil {
		return fmt.Errorf("upsert rule %q: %w", entry.Name, err)
	}
	return nil
}

// Count returns the number of stored rules.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM rules").Scan(&n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// GetByName looks up a rule by exact name, case-insensitive. An empty
// entryType matches any type; with several typed entries under one name the
// lowest rowid wins.
func (s *SQLiteStore) GetByName(name string, entryType string) (RuleEntry, error) {
	q := `SELECT name, source, type, content, refs, level, school, rarity
	      FROM rules WHERE name_lower = ?`
	args := []any{strings.ToLower(strings.TrimSpace(name))}
	if entryType != "" {
		q += " AND type = ?"
		args = append(args, entryType)
	}
	q += " ORDER BY rule_id LIMIT 1"

	entry, err := s.scanOne(s.db.QueryRow(q, args...))
	if err == sql.ErrNoRows {
		return RuleEntry{}, ErrNotFound
	}
	if err != nil {
		return RuleEntry{}, fmt.Errorf("get rule %q: %w", name, err)
	}
	return entry, nil
}

// Search runs ranked full-text retrieval over names and content. Hits whose
// name exactly matches or starts with the query rank ahead of body-only hits
// at equal bm25 relevance.
func (s *SQLiteStore) Search(query string, limit int, filterType string) ([]RuleEntry, error) {
	if limit < 1 {
		limit = 1
	}
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	q := `SELECT r.name, r.source, r.type, r.content, r.refs, r.level, r.school, r.rarity,
	             bm25(rules_fts)
	             - (CASE WHEN r.name_lower = ? THEN 10.0 ELSE 0.0 END)
	             - (CASE WHEN r.name_lower LIKE ? THEN 3.0 ELSE 0.0 END) AS score
	      FROM rules_fts
	      JOIN rules r ON r.rule_id = rules_fts.rowid
	      WHERE rules_fts MATCH ?`
	lower := strings.ToLower(strings.TrimSpace(query))
	args := []any{lower, lower + "%", ftsQuery}
	if filterType != "" {
		q += " AND r.type = ?"
		args = append(args, filterType)
	}
	q += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search rules %q: %w", query, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []RuleEntry
	for rows.Next() {
		var (
			entry RuleEntry
			refs  string
			score float64
		)
		if err := rows.Scan(&entry.Name, &entry.Source, &entry.Type, &entry.Content,
			&refs, &entry.Level, &entry.School, &entry.Rarity, &score); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &entry.References); err != nil {
			return nil, fmt.Errorf("decode references for %q: %w", entry.Name, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) scanOne(row *sql.Row) (RuleEntry, error) {
	var (
		entry RuleEntry
		refs  string
	)
	if err := row.Scan(&entry.Name, &entry.Source, &entry.Type, &entry.Content,
		&refs, &entry.Level, &entry.School, &entry.Rarity); err != nil {
		return RuleEntry{}, err
	}
	if err := json.Unmarshal([]byte(refs), &entry.References); err != nil {
		return RuleEntry{}, fmt.Errorf("decode references: %w", err)
	}
	return entry, nil
}

// buildFTSQuery quotes each token so user punctuation cannot break the FTS5
// query syntax. Tokens are ORed; bm25 rewards documents matching more of them.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
