// Package outputlog durably captures each session's terminal output into an
// append-only SQLite log with full-text search, so scrollback survives
// session death and can be grepped across every session that ever ran.
package outputlog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	ts         REAL NOT NULL,
	content    TEXT NOT NULL,
	archived   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chunks_session_ts ON chunks(session_id, ts);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content, content=chunks, content_rowid=id
);
`

const ftsTriggers = `
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;
`

// Chunk is one appended block of captured output.
type Chunk struct {
	Timestamp float64
	Content   string
}

// SearchResult is one FTS match, with the matched content rendered as an
// HTML snippet with <b>...</b> markers around the hit.
type SearchResult struct {
	SessionID string
	Timestamp float64
	Snippet   string
}

// HistoryPage is a page of chunks read back in chronological order, plus the
// timestamp of the earliest chunk on the page (for paging further back).
// EarliestTS is nil when the page has no chunks.
type HistoryPage struct {
	Chunks     []Chunk
	EarliestTS *float64
}

// Log is the append-only, full-text-searchable output store.
type Log struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) a Log backed by the sqlite database at
// path, in WAL mode with synchronous=NORMAL for append throughput.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("outputlog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("outputlog: %s: %w", pragma, err)
		}
	}

	for _, stmt := range []string{schema, ftsSchema, ftsTriggers} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("outputlog: init schema: %w", err)
		}
	}

	return &Log{db: db}, nil
}

// Append adds lines as one chunk, newline-joined, timestamped now. A no-op
// if lines is empty.
func (l *Log) Append(sessionID string, lines []string, now float64) error {
	if len(lines) == 0 {
		return nil
	}
	content := strings.Join(lines, "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(
		`INSERT INTO chunks (session_id, ts, content, archived) VALUES (?, ?, ?, 0)`,
		sessionID, now, content,
	)
	if err != nil {
		return fmt.Errorf("outputlog: append %s: %w", sessionID, err)
	}
	return nil
}

// Read returns up to limit chunks for sessionID in chronological order. If
// before is non-nil, only chunks strictly older than *before are returned,
// so repeated calls page backward through history.
func (l *Log) Read(sessionID string, before *float64, limit int) (HistoryPage, error) {
	if limit <= 0 {
		limit = 50
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var rows *sql.Rows
	var err error
	if before != nil {
		rows, err = l.db.Query(
			`SELECT ts, content FROM chunks
			 WHERE session_id = ? AND archived = 0 AND ts < ?
			 ORDER BY ts DESC LIMIT ?`,
			sessionID, *before, limit,
		)
	} else {
		rows, err = l.db.Query(
			`SELECT ts, content FROM chunks
			 WHERE session_id = ? AND archived = 0
			 ORDER BY ts DESC LIMIT ?`,
			sessionID, limit,
		)
	}
	if err != nil {
		return HistoryPage{}, fmt.Errorf("outputlog: read %s: %w", sessionID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Timestamp, &c.Content); err != nil {
			return HistoryPage{}, fmt.Errorf("outputlog: scan %s: %w", sessionID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return HistoryPage{}, fmt.Errorf("outputlog: rows %s: %w", sessionID, err)
	}

	// Rows came back newest-first; reverse to chronological order.
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}

	var earliest *float64
	if len(chunks) > 0 {
		ts := chunks[0].Timestamp
		earliest = &ts
	}

	return HistoryPage{Chunks: chunks, EarliestTS: earliest}, nil
}

// Search runs a full-text query over non-archived chunks, optionally scoped
// to one session, most relevant first.
func (l *Log) Search(query, sessionID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sqlQuery := `
		SELECT c.session_id, c.ts, snippet(chunks_fts, 0, '<b>', '</b>', '...', 40)
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.rowid
		WHERE chunks_fts MATCH ? AND c.archived = 0`
	args := []any{query}
	if sessionID != "" {
		sqlQuery += " AND c.session_id = ?"
		args = append(args, sessionID)
	}
	sqlQuery += " ORDER BY f.rank LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("outputlog: search %q: %w", query, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SessionID, &r.Timestamp, &r.Snippet); err != nil {
			return nil, fmt.Errorf("outputlog: search scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LatestTS returns the timestamp of the most recent chunk for sessionID, or
// 0 if the session has no chunks.
func (l *Log) LatestTS(sessionID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ts sql.NullFloat64
	err := l.db.QueryRow(`SELECT MAX(ts) FROM chunks WHERE session_id = ?`, sessionID).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("outputlog: latest_ts %s: %w", sessionID, err)
	}
	return ts.Float64, nil
}

// SoftDelete marks a session's chunks archived without removing them, so a
// later search or read won't surface them but the data is preserved.
func (l *Log) SoftDelete(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(`UPDATE chunks SET archived = 1 WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("outputlog: soft_delete %s: %w", sessionID, err)
	}
	return nil
}

// SessionIDs returns every distinct non-archived session id in the log.
func (l *Log) SessionIDs() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT DISTINCT session_id FROM chunks WHERE archived = 0`)
	if err != nil {
		return nil, fmt.Errorf("outputlog: session_ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("outputlog: session_ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}
