package gateway

type FilterOp int

const (
	OpEq FilterOp = iota
	OpIn
	OpContains
	OpOr
)

// Filter is one predicate of a query. Filters passed together are ANDed.
type Filter struct {
	Op     FilterOp
	Column string
	Value  any
	Values []any
	Any    []Filter
}

func Eq(column string, value any) Filter {
	return Filter{Op: OpEq, Column: column, Value: value}
}

func In[T any](column string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Op: OpIn, Column: column, Values: vs}
}

// Contains is a case-insensitive substring match.
func Contains(column, substr string) Filter {
	return Filter{Op: OpContains, Column: column, Value: substr}
}

func Or(filters ...Filter) Filter {
	return Filter{Op: OpOr, Any: filters}
}

type Order struct {
	Column string
	Desc   bool
}

// Embed attaches rows of another table to each result row. With Many the
// children are a []Row (empty when none), otherwise a single Row or nil.
type Embed struct {
	Name       string
	Table      string
	Columns    []string
	LocalKey   string
	ForeignKey string
	Many       bool
}

// EmbedOne embeds the row of table whose id equals the parent's localKey.
func EmbedOne(table, localKey string, columns ...string) Embed {
	return Embed{Name: table, Table: table, Columns: columns, LocalKey: localKey, ForeignKey: "id"}
}

// EmbedMany embeds every row of table whose foreignKey equals the parent id.
func EmbedMany(table, foreignKey string, columns ...string) Embed {
	return Embed{Name: table, Table: table, Columns: columns, LocalKey: "id", ForeignKey: foreignKey, Many: true}
}

// Window is an inclusive row range, like offsets [From, To].
type Window struct {
	From int
	To   int
}

func (w Window) Limit() int { return w.To - w.From + 1 }

type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Window  *Window
	Embeds  []Embed
}

func From(table string) Query {
	return Query{Table: table}
}

func (q Query) Select(columns ...string) Query {
	q.Columns = append(append([]string(nil), q.Columns...), columns...)
	return q
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Desc: desc})
	return q
}

// Range limits the result to the inclusive offsets from..to.
func (q Query) Range(from, to int) Query {
	q.Window = &Window{From: from, To: to}
	return q
}

func (q Query) With(embeds ...Embed) Query {
	q.Embeds = append(append([]Embed(nil), q.Embeds...), embeds...)
	return q
}
