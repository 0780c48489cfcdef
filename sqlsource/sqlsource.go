// Package sqlsource implements a query.Source over a relational table reachable through database/sql. Statements
// are built with squirrel, so the same Table works against any driver given the right placeholder format.
package sqlsource

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/query"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Conn is the subset of *sql.DB, *sql.Conn, and *sql.Tx a Table needs.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ScanFunc decodes the current row into an entity. Columns are in the order given to New.
type ScanFunc[E entity.Entity] func(row sq.RowScanner) (E, error)

// Table is a query.Source over a single table.
type Table[E entity.Entity] struct {
	conn    Conn
	schema  entity.Schema
	columns []string
	scan    ScanFunc[E]
	opts    *options
	builder sq.StatementBuilderType
}

// New returns a Table that selects columns from the table named by schema.Name and decodes rows with scan.
func New[E entity.Entity](
	conn Conn,
	schema entity.Schema,
	columns []string,
	scan ScanFunc[E],
	opts ...Option,
) *Table[E] {
	o := newOptions(opts...)
	return &Table[E]{
		conn:    conn,
		schema:  schema,
		columns: columns,
		scan:    scan,
		opts:    o,
		builder: sq.StatementBuilder.PlaceholderFormat(o.placeholder),
	}
}

// Schema implements query.Source.
func (t *Table[E]) Schema() entity.Schema { return t.schema }

// Min implements query.Source.
func (t *Table[E]) Min(ctx context.Context, q query.Query) (entity.Key, bool, error) {
	return t.aggregate(ctx, "MIN", q)
}

// Max implements query.Source.
func (t *Table[E]) Max(ctx context.Context, q query.Query) (entity.Key, bool, error) {
	return t.aggregate(ctx, "MAX", q)
}

func (t *Table[E]) aggregate(ctx context.Context, fn string, q query.Query) (entity.Key, bool, error) {
	stmt, args, err := t.where(t.builder.Select(fn+"("+t.schema.KeyColumn+")"), q).ToSql()
	if err != nil {
		return 0, false, err
	}
	var k sql.NullInt64
	start := time.Now()
	err = t.conn.QueryRowContext(ctx, stmt, args...).Scan(&k)
	t.opts.recorder.Record(stmt, args, time.Since(start))
	if err != nil {
		return 0, false, err
	}
	return entity.Key(k.Int64), k.Valid, nil
}

// Exec implements query.Source.
func (t *Table[E]) Exec(ctx context.Context, q query.Query) ([]E, error) {
	b := t.where(t.builder.Select(t.columns...), q).
		OrderBy(t.schema.KeyColumn + " " + orderSQL(query.GetOrder(q)))
	if limit, ok := query.Limit(q); ok {
		if limit <= 0 {
			return nil, nil
		}
		b = b.Limit(uint64(limit))
	}
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := t.conn.QueryContext(ctx, stmt, args...)
	defer func() { t.opts.recorder.Record(stmt, args, time.Since(start)) }()
	if err != nil {
		return nil, err
	}
	var res []E
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, errors.CombineErrors(err, rows.Close())
		}
		res = append(res, e)
	}
	if err := errors.CombineErrors(rows.Err(), rows.Close()); err != nil {
		return nil, err
	}
	t.opts.logger.Debug("executed select", zap.String("stmt", stmt), zap.Int("rows", len(res)))
	return res, nil
}

// where narrows b by the conditions and key range of q.
func (t *Table[E]) where(b sq.SelectBuilder, q query.Query) sq.SelectBuilder {
	b = b.From(t.schema.Name)
	for _, c := range Conditions(q) {
		b = b.Where(c)
	}
	if after, ok := query.KeyAfter(q); ok {
		b = b.Where(sq.Gt{t.schema.KeyColumn: int64(after)})
	}
	if atMost, ok := query.KeyAtMost(q); ok {
		b = b.Where(sq.LtOrEq{t.schema.KeyColumn: int64(atMost)})
	}
	return b
}

func orderSQL(o query.Order) string {
	if o == query.Descending {
		return "DESC"
	}
	return "ASC"
}

// |||| WHERE ||||

const whereOptKey query.OptionKey = "sqlsource.where"

// Where adds a SQL condition to the query. Conditions accumulate and are joined with AND.
func Where(q query.Query, cond sq.Sqlizer) {
	prev := Conditions(q)
	// Clones share the previous slice, so it must never be appended to in place.
	next := make([]sq.Sqlizer, len(prev), len(prev)+1)
	copy(next, prev)
	q.Set(whereOptKey, append(next, cond))
}

// Conditions returns the SQL conditions added to the query with Where.
func Conditions(q query.Query) []sq.Sqlizer {
	v, ok := q.Get(whereOptKey)
	if !ok {
		return nil
	}
	c, _ := v.([]sq.Sqlizer)
	return c
}
