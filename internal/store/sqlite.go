package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	label         TEXT NOT NULL,
	canonical_key TEXT NOT NULL,
	properties    TEXT NOT NULL DEFAULT '{}',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	touch         INTEGER NOT NULL DEFAULT 0,
	UNIQUE(type, canonical_key)
);
CREATE INDEX IF NOT EXISTS idx_nodes_touch ON nodes(touch);

CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	from_id    TEXT NOT NULL REFERENCES nodes(id),
	to_id      TEXT NOT NULL REFERENCES nodes(id),
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(type, from_id, to_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
`

const nodeColumns = `id, type, label, canonical_key, properties, created_at, updated_at`

// SQLiteStore persists the graph in a single SQLite file.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	opts   Options
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLiteStore, error) {
	const op = "store.OpenSQLite"
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, op, err, "cannot create %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, op, err, "open %s", path)
	}
	// One writer keeps the upsert read-then-write sequences serial.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStoreUnavailable, op, err, "initialize schema")
	}
	return &SQLiteStore{db: db, opts: opts.withDefaults()}, nil
}

func (s *SQLiteStore) fail(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindStoreUnavailable, op, err, "database unavailable")
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errs.Wrap(errs.KindConflict, op, err, "uniqueness violated")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLiteStore) checkOpen(op string) error {
	if s.closed {
		return errs.New(errs.KindStoreUnavailable, op, "store is closed")
	}
	return nil
}

func (s *SQLiteStore) UpsertNode(ctx context.Context, nodeType, label string, props map[string]interface{}) (string, bool, error) {
	const op = "store.UpsertNode"
	key := s.opts.Labeler.Key(label)
	if err := validateUpsert(op, nodeType, key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return "", false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, s.fail(op, err)
	}
	defer tx.Rollback()

	existing, err := scanNode(tx.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE type = ? AND canonical_key = ?`, nodeType, key))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, s.fail(op, err)
	}

	now := s.opts.Now()
	id := ""
	created := false
	if existing != nil {
		id = existing.ID
		raw, err := encodeProperties(model.MergeProperties(existing.Properties, props))
		if err != nil {
			return "", false, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET properties = ?, updated_at = ?, touch = (SELECT COALESCE(MAX(touch), 0) + 1 FROM nodes) WHERE id = ?`,
			raw, now.Format(time.RFC3339Nano), id); err != nil {
			return "", false, s.fail(op, err)
		}
	} else {
		id = s.opts.NewID()
		created = true
		raw, err := encodeProperties(model.MergeProperties(nil, props))
		if err != nil {
			return "", false, err
		}
		stamp := now.Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (`+nodeColumns+`, touch) VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(touch), 0) + 1 FROM nodes))`,
			id, nodeType, s.opts.Labeler.Display(label), key, raw, stamp, stamp); err != nil {
			return "", false, s.fail(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, s.fail(op, err)
	}
	return id, created, nil
}

func (s *SQLiteStore) UpdateNode(ctx context.Context, id string, label *string, props map[string]interface{}, merge bool) (*model.Node, error) {
	const op = "store.UpdateNode"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer tx.Rollback()

	n, err := scanNode(tx.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "node", id)
	}
	if err != nil {
		return nil, s.fail(op, err)
	}

	if label != nil {
		key := s.opts.Labeler.Key(*label)
		if key == "" {
			return nil, errs.New(errs.KindInvalidInput, op, "label is empty after canonicalization")
		}
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT id FROM nodes WHERE type = ? AND canonical_key = ?`, n.Type, key).Scan(&owner)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail(op, err)
		}
		if owner != "" && owner != id {
			return nil, errs.New(errs.KindConflict, op, "label %q already belongs to node %s", *label, owner)
		}
		n.Label = s.opts.Labeler.Display(*label)
		n.CanonicalKey = key
	}

	if merge {
		n.Properties = model.MergeProperties(n.Properties, props)
	} else {
		n.Properties = model.MergeProperties(nil, props)
	}
	if n.Properties == nil {
		n.Properties = map[string]interface{}{}
	}
	raw, err := encodeProperties(n.Properties)
	if err != nil {
		return nil, err
	}
	n.UpdatedAt = s.opts.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET label = ?, canonical_key = ?, properties = ?, updated_at = ?,
			touch = (SELECT COALESCE(MAX(touch), 0) + 1 FROM nodes) WHERE id = ?`,
		n.Label, n.CanonicalKey, raw, n.UpdatedAt.Format(time.RFC3339Nano), id); err != nil {
		return nil, s.fail(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail(op, err)
	}
	return n, nil
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*model.Node, error) {
	const op = "store.GetNode"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	n, err := scanNode(s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, "node", id)
	}
	if err != nil {
		return nil, s.fail(op, err)
	}
	return n, nil
}

func (s *SQLiteStore) FindNode(ctx context.Context, nodeType, label string) (*model.Node, error) {
	const op = "store.FindNode"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	n, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE type = ? AND canonical_key = ?`, nodeType, s.opts.Labeler.Key(label)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(op, nodeType, label)
	}
	if err != nil {
		return nil, s.fail(op, err)
	}
	return n, nil
}

func (s *SQLiteStore) CreateEdge(ctx context.Context, edgeType, fromID, toID string, props map[string]interface{}) (string, bool, error) {
	const op = "store.CreateEdge"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return "", false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, s.fail(op, err)
	}
	defer tx.Rollback()

	for _, endpoint := range []string{fromID, toID} {
		var found int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, endpoint).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, errs.New(errs.KindDanglingReference, op, "node %q does not exist", endpoint)
		}
		if err != nil {
			return "", false, s.fail(op, err)
		}
	}

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM edges WHERE type = ? AND from_id = ? AND to_id = ?`,
		edgeType, fromID, toID).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, s.fail(op, err)
	}

	raw, err := encodeProperties(model.MergeProperties(nil, props))
	if err != nil {
		return "", false, err
	}
	id := s.opts.NewID()
	stamp := s.opts.Now().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO edges (id, type, from_id, to_id, properties, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, edgeType, fromID, toID, raw, stamp, stamp); err != nil {
		return "", false, s.fail(op, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, s.fail(op, err)
	}
	return id, true, nil
}

func (s *SQLiteStore) EdgesFrom(ctx context.Context, fromID string) ([]model.Edge, error) {
	const op = "store.EdgesFrom"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, from_id, to_id, properties, created_at, updated_at FROM edges WHERE from_id = ? ORDER BY created_at, rowid`, fromID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var raw, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.FromID, &e.ToID, &raw, &createdAt, &updatedAt); err != nil {
			return nil, s.fail(op, err)
		}
		if e.Properties, err = decodeProperties(raw); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, err)
	}
	return edges, nil
}

func (s *SQLiteStore) QueryContext(ctx context.Context, types []string, limit int) ([]model.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes`
	args := make([]interface{}, 0, len(types)+1)
	if len(types) > 0 {
		query += ` WHERE type IN (?` + strings.Repeat(`, ?`, len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += ` ORDER BY touch DESC LIMIT ?`
	args = append(args, limitOrDefault(limit))
	return s.queryNodes(ctx, "store.QueryContext", query, args...)
}

func (s *SQLiteStore) NodesByType(ctx context.Context, nodeType string) ([]model.Node, error) {
	return s.queryNodes(ctx, "store.NodesByType",
		`SELECT `+nodeColumns+` FROM nodes WHERE type = ? ORDER BY touch ASC`, nodeType)
}

func (s *SQLiteStore) queryNodes(ctx context.Context, op, query string, args ...interface{}) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, s.fail(op, err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, err)
	}
	return nodes, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*model.Node, error) {
	var n model.Node
	var raw, createdAt, updatedAt string
	if err := row.Scan(&n.ID, &n.Type, &n.Label, &n.CanonicalKey, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	props, err := decodeProperties(raw)
	if err != nil {
		return nil, err
	}
	n.Properties = props
	n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	n.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &n, nil
}

func encodeProperties(props map[string]interface{}) (string, error) {
	if props == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "store.encodeProperties", err, "properties are not serializable")
	}
	return string(raw), nil
}
