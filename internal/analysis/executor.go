package analysis

import (
	"context"
	"fmt"
	"reflect"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"gorm.io/gorm"
)

// Executor runs a compiled query and returns raw rows: fixed-width ordered
// tuples matching the compiled select-list width.
type Executor interface {
	Run(ctx context.Context, cq *CompiledQuery) ([][]any, error)
}

// GormExecutor renders and runs the query against the relational event store
// through gorm's raw SQL path.
type GormExecutor struct {
	db      *gorm.DB
	dialect Dialect
}

func NewGormExecutor(db *gorm.DB) *GormExecutor {
	return &GormExecutor{db: db, dialect: DialectFor(db.Dialector.Name())}
}

func (e *GormExecutor) Run(ctx context.Context, cq *CompiledQuery) ([][]any, error) {
	sql, args, qerr := Render(cq, e.dialect)
	if qerr != nil {
		return nil, qerr
	}
	rows, err := e.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("run analysis query: %w", err)
	}
	defer rows.Close()

	width := len(cq.Select)
	var out [][]any
	for rows.Next() {
		ptrs := make([]any, width)
		vals := make([]any, width)
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// ClickHouseExecutor runs the query against a ClickHouse events mirror.
// Column values are materialized through the driver's scan types since
// clickhouse-go refuses untyped destinations.
type ClickHouseExecutor struct {
	conn clickhouse.Conn
}

func NewClickHouseExecutor(conn clickhouse.Conn) *ClickHouseExecutor {
	return &ClickHouseExecutor{conn: conn}
}

func (e *ClickHouseExecutor) Run(ctx context.Context, cq *CompiledQuery) ([][]any, error) {
	sql, args, qerr := Render(cq, ClickHouseDialect{})
	if qerr != nil {
		return nil, qerr
	}
	rows, err := e.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("run clickhouse analysis query: %w", err)
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	var out [][]any
	for rows.Next() {
		ptrs := make([]any, len(types))
		for i, ct := range types {
			ptrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan clickhouse row: %w", err)
		}
		vals := make([]any, len(ptrs))
		for i, p := range ptrs {
			vals[i] = reflect.ValueOf(p).Elem().Interface()
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
