package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Dialect picks placeholder syntax for SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists a family as JSON payload rows in its own table, one transaction per batch.
type SQLStore[T Entity] struct {
	db      *sql.DB
	dialect Dialect
	table   string
	hub     *hub[T]
}

// NewSQLStore binds a family to db. Call Migrate before first use.
func NewSQLStore[T Entity](db *sql.DB, dialect Dialect, family string, logger *zap.Logger) (*SQLStore[T], error) {
	if db == nil {
		return nil, errors.New("cache: nil db")
	}
	if err := validateFamily(family); err != nil {
		return nil, err
	}
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("cache: unsupported dialect %q", dialect)
	}
	return &SQLStore[T]{
		db:      db,
		dialect: dialect,
		table:   "cache_" + family,
		hub:     newHub[T](family, logger),
	}, nil
}

// Migrate creates the family table when missing.
func (s *SQLStore[T]) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, payload TEXT NOT NULL)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("cache: migrate %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	var payload string
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT payload FROM %s WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var item T
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return zero, false, fmt.Errorf("cache: decode %s/%s: %w", s.table, id, err)
	}
	return item, true, nil
}

func (s *SQLStore[T]) GetAll(ctx context.Context) ([]T, error) {
	return s.selectAll(ctx, s.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore[T]) selectAll(ctx context.Context, q queryer) ([]T, error) {
	rows, err := q.QueryContext(ctx, s.bind(`SELECT id, payload FROM %s ORDER BY id`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("cache: decode %s/%s: %w", s.table, id, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLStore[T]) Upsert(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insert(ctx, tx, items)
	})
}

func (s *SQLStore[T]) ReplaceScope(ctx context.Context, inScope Filter[T], items []T) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if inScope == nil {
			if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM %s`)); err != nil {
				return err
			}
		} else {
			current, err := s.selectAll(ctx, tx)
			if err != nil {
				return err
			}
			if err := s.remove(ctx, tx, keysOf(Select(current, inScope))); err != nil {
				return err
			}
		}
		return s.insert(ctx, tx, items)
	})
}

func (s *SQLStore[T]) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.remove(ctx, tx, ids)
	})
}

func (s *SQLStore[T]) Subscribe(ctx context.Context, filter Filter[T]) <-chan []T {
	return s.hub.subscribe(ctx, filter, s.GetAll)
}

func (s *SQLStore[T]) insert(ctx context.Context, tx *sql.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.bind(
		`INSERT INTO %s (id, payload) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("cache: encode %s/%s: %w", s.table, item.CacheKey(), err)
		}
		if _, err := stmt.ExecContext(ctx, item.CacheKey(), string(payload)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore[T]) remove(ctx context.Context, tx *sql.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.bind(`DELETE FROM %s WHERE id = ?`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore[T]) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

// bind fills in the table name and, for postgres, rewrites ? placeholders to $n.
func (s *SQLStore[T]) bind(query string) string {
	query = fmt.Sprintf(query, s.table)
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
