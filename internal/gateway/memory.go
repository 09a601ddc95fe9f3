package gateway

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryGateway keeps tables in process. Ids are assigned from a per-table
// sequence when a row has none and created_at is filled on insert.
type MemoryGateway struct {
	mu     sync.RWMutex
	tables map[string][]Row
	seq    map[string]int64
	unique map[string][][]string
	now    func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tables: map[string][]Row{},
		seq:    map[string]int64{},
		unique: map[string][][]string{},
		now:    time.Now,
	}
}

// Unique declares a unique constraint; inserts violating it fail with
// ErrConflict.
func (m *MemoryGateway) Unique(table string, columns ...string) *MemoryGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[table] = append(m.unique[table], columns)
	return m
}

// Seed inserts rows directly, ignoring constraint failures.
func (m *MemoryGateway) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		_, _ = m.insertLocked(table, r)
	}
}

// Rows returns a copy of every row stored in table.
func (m *MemoryGateway) Rows(table string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r, nil))
	}
	return out
}

func (m *MemoryGateway) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("select", q.Table, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, err := m.selectLocked(q)
	return rows, wrap("select", q.Table, err)
}

func (m *MemoryGateway) selectLocked(q Query) ([]Row, error) {
	if _, err := quoteIdent(q.Table); err != nil {
		return nil, err
	}

	var matched []Row
	for _, r := range m.tables[q.Table] {
		if matchAll(r, q.Filters) {
			matched = append(matched, r)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compareValues(matched[i][o.Column], matched[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Window != nil {
		from, to := q.Window.From, q.Window.To+1
		if from < 0 {
			from = 0
		}
		if to > len(matched) {
			to = len(matched)
		}
		if from >= to {
			matched = nil
		} else {
			matched = matched[from:to]
		}
	}

	columns := q.Columns
	for _, e := range q.Embeds {
		columns = withColumn(columns, e.LocalKey)
	}

	out := make([]Row, 0, len(matched))
	for _, r := range matched {
		out = append(out, copyRow(r, columns))
	}

	for _, e := range q.Embeds {
		if err := attachEmbed(out, e, m.selectLocked); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *MemoryGateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("insert", table, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.insertLocked(table, row)
	return stored, wrap("insert", table, err)
}

// InsertMany is all-or-nothing, matching the SQL implementation.
func (m *MemoryGateway) InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("insert", table, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.tables[table])
	seq := m.seq[table]
	stored := make([]Row, 0, len(rows))
	for _, r := range rows {
		s, err := m.insertLocked(table, r)
		if err != nil {
			m.tables[table] = m.tables[table][:before]
			m.seq[table] = seq
			return nil, wrap("insert", table, err)
		}
		stored = append(stored, s)
	}
	return stored, nil
}

func (m *MemoryGateway) insertLocked(table string, row Row) (Row, error) {
	if _, err := quoteIdent(table); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: empty insert", ErrInvalidQuery)
	}

	r := copyRow(row, nil)
	if id, ok := r["id"]; !ok || id == nil {
		m.seq[table]++
		r["id"] = m.seq[table]
	} else if n, ok := ID(r, "id"); ok && n > m.seq[table] {
		m.seq[table] = n
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = m.now().UTC()
	}

	constraints := append([][]string{{"id"}}, m.unique[table]...)
	for _, existing := range m.tables[table] {
		for _, cols := range constraints {
			if sameColumns(existing, r, cols) {
				return nil, fmt.Errorf("%w: %s(%s)", ErrConflict, table, strings.Join(cols, ", "))
			}
		}
	}

	m.tables[table] = append(m.tables[table], r)
	return copyRow(r, nil), nil
}

func (m *MemoryGateway) Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("update", table, err)
	}
	if len(values) == 0 || len(filters) == 0 {
		return 0, wrap("update", table, fmt.Errorf("%w: empty or unscoped update", ErrInvalidQuery))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.tables[table] {
		if !matchAll(r, filters) {
			continue
		}
		for k, v := range values {
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *MemoryGateway) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("delete", table, err)
	}
	if len(filters) == 0 {
		return 0, wrap("delete", table, fmt.Errorf("%w: unscoped delete", ErrInvalidQuery))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	var n int64
	for _, r := range m.tables[table] {
		if matchAll(r, filters) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return n, nil
}

func copyRow(r Row, columns []string) Row {
	if len(columns) == 0 {
		out := make(Row, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

func sameColumns(a, b Row, cols []string) bool {
	for _, c := range cols {
		if a[c] == nil || b[c] == nil || !equalValues(a[c], b[c]) {
			return false
		}
	}
	return true
}

func matchAll(r Row, filters []Filter) bool {
	for _, f := range filters {
		if !match(r, f) {
			return false
		}
	}
	return true
}

func match(r Row, f Filter) bool {
	switch f.Op {
	case OpEq:
		if f.Value == nil {
			return r[f.Column] == nil
		}
		return equalValues(r[f.Column], f.Value)
	case OpIn:
		for _, v := range f.Values {
			if equalValues(r[f.Column], v) {
				return true
			}
		}
		return false
	case OpContains:
		v := r[f.Column]
		if v == nil {
			return false
		}
		substr, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(substr))
	case OpOr:
		for _, sub := range f.Any {
			if match(r, sub) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av == bv
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case bool, string:
		return 0, false
	}
	f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
	return f, err == nil
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
