// Package sqlite is the durable transaction store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

const (
	keyLastCleanup     = "last_cleanup_at"
	keyRetentionPeriod = "retention_period"
)

const columns = `id, session_id, status, method, url, scheme, host, path,
	request_headers, request_body, requested_at, response_code, response, duration_ns, error`

// driverName is go-sqlite3 with a fold() function so text search folds
// Unicode case the same way the memory and mongo stores do; LIKE alone
// only folds ASCII.
const driverName = "sqlite3_wormaceptor"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Store implements usecase.TransactionRepository and usecase.StateRepository.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if strings.HasPrefix(path, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(home, path[1:])
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	// one connection serializes writers and keeps :memory: on a single db
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			scheme TEXT NOT NULL DEFAULT '',
			host TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			request_headers TEXT,
			request_body TEXT,
			requested_at INTEGER NOT NULL,
			response_code INTEGER NOT NULL DEFAULT 0,
			response TEXT,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_requested_at ON transactions(requested_at);

		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type encoded struct {
	headers  string
	body     string
	response sql.NullString
}

func encode(tx domain.Transaction) (encoded, error) {
	var e encoded
	h, err := json.Marshal(tx.RequestHeaders)
	if err != nil {
		return e, err
	}
	b, err := json.Marshal(tx.RequestBody)
	if err != nil {
		return e, err
	}
	e.headers, e.body = string(h), string(b)
	if tx.Response != nil {
		r, err := json.Marshal(tx.Response)
		if err != nil {
			return e, err
		}
		e.response = sql.NullString{String: string(r), Valid: true}
	}
	return e, nil
}

func (s *Store) Insert(ctx context.Context, tx domain.Transaction) error {
	e, err := encode(tx)
	if err != nil {
		return fmt.Errorf("encode %d: %w", tx.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.SessionID, string(tx.Status), tx.Method, tx.URL, tx.Scheme, tx.Host, tx.Path,
		e.headers, e.body, tx.RequestedAt.UnixNano(), tx.ResponseCode(), e.response, int64(tx.Duration), tx.Error)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("insert %d: %w", tx.ID, usecase.ErrDuplicateID)
		}
		return fmt.Errorf("insert %d: %w", tx.ID, err)
	}
	return nil
}

// Update replaces the record only while it is still requested, so a terminal
// row can never be overwritten.
func (s *Store) Update(ctx context.Context, tx domain.Transaction) error {
	e, err := encode(tx)
	if err != nil {
		return fmt.Errorf("encode %d: %w", tx.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			status = ?, method = ?, url = ?, scheme = ?, host = ?, path = ?,
			request_headers = ?, request_body = ?, response_code = ?, response = ?,
			duration_ns = ?, error = ?
		WHERE id = ? AND status = ?
	`, string(tx.Status), tx.Method, tx.URL, tx.Scheme, tx.Host, tx.Path,
		e.headers, e.body, tx.ResponseCode(), e.response, int64(tx.Duration), tx.Error,
		tx.ID, string(domain.StatusRequested))
	if err != nil {
		return fmt.Errorf("update %d: %w", tx.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = ?`, tx.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %d: %w", tx.ID, usecase.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %d: %w", tx.ID, err)
	}
	return fmt.Errorf("update %d (%s): %w", tx.ID, status, usecase.ErrTerminal)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		tx          domain.Transaction
		status      string
		headers     sql.NullString
		body        sql.NullString
		requestedAt int64
		code        int
		response    sql.NullString
		durationNS  int64
	)
	err := row.Scan(&tx.ID, &tx.SessionID, &status, &tx.Method, &tx.URL, &tx.Scheme, &tx.Host, &tx.Path,
		&headers, &body, &requestedAt, &code, &response, &durationNS, &tx.Error)
	if err != nil {
		return tx, err
	}
	tx.Status = domain.Status(status)
	tx.RequestedAt = time.Unix(0, requestedAt).UTC()
	tx.Duration = time.Duration(durationNS)
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &tx.RequestHeaders); err != nil {
			return tx, fmt.Errorf("decode headers of %d: %w", tx.ID, err)
		}
	}
	if body.Valid && body.String != "" {
		if err := json.Unmarshal([]byte(body.String), &tx.RequestBody); err != nil {
			return tx, fmt.Errorf("decode body of %d: %w", tx.ID, err)
		}
	}
	if response.Valid && response.String != "" {
		var r domain.Response
		if err := json.Unmarshal([]byte(response.String), &r); err != nil {
			return tx, fmt.Errorf("decode response of %d: %w", tx.ID, err)
		}
		tx.Response = &r
	}
	return tx, nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("get %d: %w", id, usecase.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

// likePattern escapes LIKE wildcards in q.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func (s *Store) Query(ctx context.Context, f usecase.TransactionFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.BeforeID > 0 {
		where = append(where, "id < ?")
		args = append(args, f.BeforeID)
	}
	if q := strings.TrimSpace(f.Text); q != "" {
		p := likePattern(strings.ToLower(q))
		where = append(where, `(fold(method) LIKE ? ESCAPE '\' OR fold(path) LIKE ? ESCAPE '\' OR fold(host) LIKE ? ESCAPE '\'
			OR status LIKE ? ESCAPE '\' OR (response_code > 0 AND CAST(response_code AS TEXT) LIKE ? ESCAPE '\'))`)
		args = append(args, p, p, p, p, p)
	}
	query := `SELECT ` + columns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0, 32)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE requested_at < ?`, t.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) MaxID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM transactions`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// StateRepository

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) LastCleanup(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.get(ctx, keyLastCleanup)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", keyLastCleanup, err)
	}
	return t, true, nil
}

func (s *Store) SetLastCleanup(ctx context.Context, t time.Time) error {
	return s.put(ctx, keyLastCleanup, t.UTC().Format(time.RFC3339Nano))
}

func (s *Store) RetentionPeriod(ctx context.Context) (domain.RetentionPeriod, bool, error) {
	v, ok, err := s.get(ctx, keyRetentionPeriod)
	if err != nil || !ok {
		return "", false, err
	}
	p, err := domain.ParseRetentionPeriod(v)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

func (s *Store) SetRetentionPeriod(ctx context.Context, p domain.RetentionPeriod) error {
	return s.put(ctx, keyRetentionPeriod, string(p))
}
