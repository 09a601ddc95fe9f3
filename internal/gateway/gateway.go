// Package gateway is the single access path to the hosted relational store.
// Every component reads and writes through the Gateway interface; the SQL
// implementation talks to MySQL and the memory implementation backs tests
// and local runs.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoRows       = errors.New("no rows in result set")
	ErrMultipleRows = errors.New("multiple rows in result set")
	ErrConflict     = errors.New("unique constraint violated")
	ErrInvalidQuery = errors.New("invalid query")
)

// Error is the structured error returned by every gateway operation.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Op: op, Table: table, Err: err}
}

// Row is one record keyed by column name. Embedded relations appear under
// their Embed.Name as a Row (one) or []Row (many).
type Row map[string]any

type Gateway interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	// Insert stores row and returns it as stored, including the assigned id.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error)
	// Update and Delete refuse to run without filters.
	Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
}

// Single runs q and returns its only row. ErrNoRows is returned (wrapped)
// when nothing matches.
func Single(ctx context.Context, g Gateway, q Query) (Row, error) {
	rows, err := g.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, &Error{Op: "single", Table: q.Table, Err: ErrNoRows}
	case 1:
		return rows[0], nil
	default:
		return nil, &Error{Op: "single", Table: q.Table, Err: ErrMultipleRows}
	}
}

// Exists reports whether any row of table matches filters.
func Exists(ctx context.Context, g Gateway, table string, filters ...Filter) (bool, error) {
	rows, err := g.Select(ctx, From(table).Select("id").Where(filters...).Range(0, 0))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Decode converts a Row, a []Row or any JSON-compatible value into dst using
// the json tags of dst.
func Decode(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// ID reads an integer id column from row regardless of the numeric type the
// backing store produced.
func ID(row Row, column string) (int64, bool) {
	switch v := row[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
