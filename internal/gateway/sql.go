package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: identifier %q", ErrInvalidQuery, name)
	}
	return "`" + name + "`", nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLGateway implements Gateway on a MySQL connection pool.
type SQLGateway struct {
	db *sql.DB
}

func NewSQLGateway(db *sql.DB) *SQLGateway {
	return &SQLGateway{db: db}
}

func (g *SQLGateway) Select(ctx context.Context, q Query) ([]Row, error) {
	rows, err := selectRows(ctx, g.db, q)
	return rows, wrap("select", q.Table, err)
}

func (g *SQLGateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	stored, err := insertRow(ctx, g.db, table, row)
	return stored, wrap("insert", table, err)
}

// InsertMany stores all rows in one transaction.
func (g *SQLGateway) InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("insert", table, err)
	}
	defer tx.Rollback()

	stored := make([]Row, 0, len(rows))
	for _, row := range rows {
		r, err := insertRow(ctx, tx, table, row)
		if err != nil {
			return nil, wrap("insert", table, err)
		}
		stored = append(stored, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap("insert", table, err)
	}
	return stored, nil
}

func (g *SQLGateway) Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error) {
	stmt, err := buildUpdate(table, values, filters)
	if err != nil {
		return 0, wrap("update", table, err)
	}
	res, err := g.db.ExecContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return 0, wrap("update", table, translate(err))
	}
	n, err := res.RowsAffected()
	return n, wrap("update", table, err)
}

func (g *SQLGateway) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	stmt, err := buildDelete(table, filters)
	if err != nil {
		return 0, wrap("delete", table, err)
	}
	res, err := g.db.ExecContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return 0, wrap("delete", table, translate(err))
	}
	n, err := res.RowsAffected()
	return n, wrap("delete", table, err)
}

func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrConflict, me.Message)
	}
	return err
}

func insertRow(ctx context.Context, db querier, table string, row Row) (Row, error) {
	stmt, err := buildInsert(table, row)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, translate(err)
	}

	id, ok := row["id"]
	if !ok || id == nil {
		lastID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		id = lastID
	}

	stored, err := selectRows(ctx, db, From(table).Where(Eq("id", id)))
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrNoRows
	}
	return stored[0], nil
}

func selectRows(ctx context.Context, db querier, q Query) ([]Row, error) {
	if q.Window != nil && q.Window.Limit() <= 0 {
		return []Row{}, nil
	}
	for _, e := range q.Embeds {
		q.Columns = withColumn(q.Columns, e.LocalKey)
	}

	stmt, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := scanRows(ctx, db, stmt)
	if err != nil {
		return nil, err
	}

	for _, e := range q.Embeds {
		fetch := func(child Query) ([]Row, error) { return selectRows(ctx, db, child) }
		if err := attachEmbed(rows, e, fetch); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// scanRows reads every column into a generic Row.
func scanRows(ctx context.Context, db querier, stmt statement) ([]Row, error) {
	rows, err := db.QueryContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		entry := make(Row, len(columns))
		for i, col := range columns {
			entry[col.Name()] = decodeValue(col.DatabaseTypeName(), values[i])
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// decodeValue maps driver values onto JSON-friendly Go values: integers stay
// int64, TINYINT becomes bool, JSON stays raw and DECIMAL becomes a string.
func decodeValue(typeName string, v any) any {
	typeName = strings.ToUpper(typeName)
	switch val := v.(type) {
	case []byte:
		raw := append([]byte(nil), val...)
		switch {
		case typeName == "JSON":
			return json.RawMessage(raw)
		case typeName == "TINYINT":
			n, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return string(raw)
			}
			return n != 0
		case strings.HasSuffix(typeName, "INT"):
			if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
				return n
			}
		case typeName == "FLOAT" || typeName == "DOUBLE":
			if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
				return f
			}
		}
		return string(raw)
	case int64:
		if typeName == "TINYINT" {
			return val != 0
		}
		return val
	default:
		return v
	}
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time:
		return v, nil
	case json.RawMessage:
		if t == nil {
			return nil, nil
		}
		return string(t), nil
	case []byte:
		return t, nil
	case driver.Valuer:
		return t, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return string(b), nil
}

type statement struct {
	sql  string
	args []any
}

func buildSelect(q Query) (statement, error) {
	table, err := quoteIdent(q.Table)
	if err != nil {
		return statement{}, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			if quoted[i], err = quoteIdent(c); err != nil {
				return statement{}, err
			}
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT " + cols + " FROM " + table)

	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return statement{}, err
	}
	b.WriteString(where)

	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			col, err := quoteIdent(o.Column)
			if err != nil {
				return statement{}, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = col + " " + dir
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if q.Window != nil {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Window.Limit(), q.Window.From)
	}

	return statement{sql: b.String(), args: args}, nil
}

func buildWhere(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		clause, fargs, err := buildFilter(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, clause)
		args = append(args, fargs...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func buildFilter(f Filter) (string, []any, error) {
	if f.Op == OpOr {
		if len(f.Any) == 0 {
			return "", nil, fmt.Errorf("%w: empty OR group", ErrInvalidQuery)
		}
		parts := make([]string, 0, len(f.Any))
		var args []any
		for _, sub := range f.Any {
			clause, sargs, err := buildFilter(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, sargs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	col, err := quoteIdent(f.Column)
	if err != nil {
		return "", nil, err
	}

	switch f.Op {
	case OpEq:
		if f.Value == nil {
			return col + " IS NULL", nil, nil
		}
		v, err := encodeValue(f.Value)
		if err != nil {
			return "", nil, err
		}
		return col + " = ?", []any{v}, nil
	case OpIn:
		if len(f.Values) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]any, len(f.Values))
		for i, v := range f.Values {
			if args[i], err = encodeValue(v); err != nil {
				return "", nil, err
			}
		}
		return col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ") + ")", args, nil
	case OpContains:
		substr, _ := f.Value.(string)
		return "LOWER(" + col + ") LIKE ?", []any{"%" + escapeLike(strings.ToLower(substr)) + "%"}, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown filter op %d", ErrInvalidQuery, f.Op)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func buildInsert(table string, row Row) (statement, error) {
	if len(row) == 0 {
		return statement{}, fmt.Errorf("%w: empty insert", ErrInvalidQuery)
	}
	t, err := quoteIdent(table)
	if err != nil {
		return statement{}, err
	}

	cols := sortedColumns(row)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if quoted[i], err = quoteIdent(c); err != nil {
			return statement{}, err
		}
		if args[i], err = encodeValue(row[c]); err != nil {
			return statement{}, err
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return statement{
		sql:  "INSERT INTO " + t + " (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")",
		args: args,
	}, nil
}

func buildUpdate(table string, values Row, filters []Filter) (statement, error) {
	if len(values) == 0 {
		return statement{}, fmt.Errorf("%w: empty update", ErrInvalidQuery)
	}
	if len(filters) == 0 {
		return statement{}, fmt.Errorf("%w: unscoped update", ErrInvalidQuery)
	}
	t, err := quoteIdent(table)
	if err != nil {
		return statement{}, err
	}

	cols := sortedColumns(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		q, err := quoteIdent(c)
		if err != nil {
			return statement{}, err
		}
		v, err := encodeValue(values[c])
		if err != nil {
			return statement{}, err
		}
		sets[i] = q + " = ?"
		args = append(args, v)
	}

	where, wargs, err := buildWhere(filters)
	if err != nil {
		return statement{}, err
	}
	return statement{
		sql:  "UPDATE " + t + " SET " + strings.Join(sets, ", ") + where,
		args: append(args, wargs...),
	}, nil
}

func buildDelete(table string, filters []Filter) (statement, error) {
	if len(filters) == 0 {
		return statement{}, fmt.Errorf("%w: unscoped delete", ErrInvalidQuery)
	}
	t, err := quoteIdent(table)
	if err != nil {
		return statement{}, err
	}
	where, args, err := buildWhere(filters)
	if err != nil {
		return statement{}, err
	}
	return statement{sql: "DELETE FROM " + t + where, args: args}, nil
}
