package analysis

import (
	"fmt"
	"strings"
)

// Dialect abstracts the few spots where backing stores disagree: JSON
// extraction, time bucketing, numeric casts and LIKE escaping. Everything
// else renders identically from the IR, which keeps "what to compute"
// testable without a live database.
type Dialect interface {
	Name() string
	JSONExtract(column, key string) string
	TimeBucket(unit TimeUnit) string
	NumericCast(inner string) string
	// LikeSuffix is appended after a LIKE predicate (the ESCAPE clause where
	// the dialect needs one).
	LikeSuffix() string
}

const eventsTable = "game_events"

// Render turns a compiled query into parameterized SQL for the dialect.
// Placeholders are `?`; both gorm and clickhouse-go rebind them as needed.
func Render(cq *CompiledQuery, d Dialect) (string, []any, *QueryError) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	for i, col := range cq.Select {
		if i > 0 {
			sb.WriteString(", ")
		}
		expr, err := renderExpr(col.Expr, d)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&sb, "%s AS %s", expr, col.Alias)
	}
	sb.WriteString(" FROM ")
	sb.WriteString(eventsTable)

	if len(cq.Filters) > 0 {
		sb.WriteString(" WHERE ")
		for i, p := range cq.Filters {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			clause, a, err := renderPredicate(p, d)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(clause)
			args = append(args, a...)
		}
	}

	groupExpr, err := renderExpr(cq.GroupBy, d)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" GROUP BY ")
	sb.WriteString(groupExpr)

	orderExpr, err := renderExpr(cq.OrderBy, d)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderExpr)
	sb.WriteString(" ASC")

	return sb.String(), args, nil
}

func renderExpr(e Expr, d Dialect) (string, *QueryError) {
	switch v := e.(type) {
	case Column:
		return v.Name, nil
	case JSONField:
		col := "parameters"
		if v.Source == BlobUserProperties {
			col = "user_properties"
		}
		return d.JSONExtract(col, v.Name), nil
	case TimeBucket:
		return d.TimeBucket(v.Unit), nil
	case NumericCast:
		inner, err := renderExpr(v.Arg, d)
		if err != nil {
			return "", err
		}
		return d.NumericCast(inner), nil
	case Aggregate:
		switch v.Fn {
		case AggCount:
			return "COUNT(*)", nil
		case AggDistinctCount:
			inner, err := renderExpr(v.Arg, d)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("COUNT(DISTINCT %s)", inner), nil
		case AggSum, AggAvg, AggMax, AggMin:
			inner, err := renderExpr(v.Arg, d)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s(%s)", strings.ToUpper(string(v.Fn)), inner), nil
		}
		return "", internalError("unknown aggregate %q", v.Fn)
	}
	return "", internalError("unknown expression %T", e)
}

func renderPredicate(p Predicate, d Dialect) (string, []any, *QueryError) {
	target, err := renderExpr(p.Target, d)
	if err != nil {
		return "", nil, err
	}
	switch p.Op {
	case OpEq:
		return target + " = ?", []any{p.Value}, nil
	case OpNe:
		return target + " != ?", []any{p.Value}, nil
	case OpGt:
		return target + " > ?", []any{p.Value}, nil
	case OpLt:
		return target + " < ?", []any{p.Value}, nil
	case OpGe:
		return target + " >= ?", []any{p.Value}, nil
	case OpLe:
		return target + " <= ?", []any{p.Value}, nil
	case OpContains:
		return target + " LIKE ?" + d.LikeSuffix(), []any{likePattern(p.Value)}, nil
	case OpNotContains:
		return target + " NOT LIKE ?" + d.LikeSuffix(), []any{likePattern(p.Value)}, nil
	case OpIsNull:
		return target + " IS NULL", nil, nil
	case OpIsNotNull:
		return target + " IS NOT NULL", nil, nil
	}
	return "", nil, internalError("unknown operator %d", p.Op)
}

// likePattern wraps the value for a substring match, escaping LIKE wildcards
// so user input never widens the match.
func likePattern(v any) string {
	s := fmt.Sprint(v)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}

// SQLiteDialect renders for the embedded sqlite event store.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }
func (SQLiteDialect) JSONExtract(column, key string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, escapeKey(key))
}
func (SQLiteDialect) TimeBucket(unit TimeUnit) string {
	switch unit {
	case UnitHour:
		return "strftime('%Y-%m-%d %H:00', timestamp/1000, 'unixepoch')"
	case UnitWeek:
		return "strftime('%Y-%W', timestamp/1000, 'unixepoch')"
	case UnitMonth:
		return "strftime('%Y-%m', timestamp/1000, 'unixepoch')"
	default: // day
		return "strftime('%Y-%m-%d', timestamp/1000, 'unixepoch')"
	}
}
func (SQLiteDialect) NumericCast(inner string) string { return fmt.Sprintf("CAST(%s AS REAL)", inner) }
func (SQLiteDialect) LikeSuffix() string              { return ` ESCAPE '\'` }

// PostgresDialect renders for a postgres event store.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }
func (PostgresDialect) JSONExtract(column, key string) string {
	return fmt.Sprintf("%s ->> '%s'", column, escapeKey(key))
}
func (PostgresDialect) TimeBucket(unit TimeUnit) string {
	const ts = "to_timestamp(timestamp/1000.0)"
	switch unit {
	case UnitHour:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD HH24:00')", ts)
	case UnitWeek:
		return fmt.Sprintf("to_char(%s, 'IYYY-IW')", ts)
	case UnitMonth:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM')", ts)
	default:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", ts)
	}
}
func (PostgresDialect) NumericCast(inner string) string {
	return fmt.Sprintf("CAST(%s AS DECIMAL)", inner)
}
func (PostgresDialect) LikeSuffix() string { return ` ESCAPE '\'` }

// ClickHouseDialect renders for a ClickHouse events mirror; backslash is the
// native LIKE escape there, no ESCAPE clause exists.
type ClickHouseDialect struct{}

func (ClickHouseDialect) Name() string { return "clickhouse" }
func (ClickHouseDialect) JSONExtract(column, key string) string {
	return fmt.Sprintf("JSONExtractRaw(%s, '%s')", column, escapeKey(key))
}
func (ClickHouseDialect) TimeBucket(unit TimeUnit) string {
	const ts = "toDateTime(intDiv(timestamp, 1000))"
	switch unit {
	case UnitHour:
		return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m-%%d %%H:00')", ts)
	case UnitWeek:
		return fmt.Sprintf("formatDateTime(%s, '%%G-%%V')", ts)
	case UnitMonth:
		return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m')", ts)
	default:
		return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m-%%d')", ts)
	}
}
func (ClickHouseDialect) NumericCast(inner string) string {
	return fmt.Sprintf("toFloat64OrZero(toString(%s))", inner)
}
func (ClickHouseDialect) LikeSuffix() string { return "" }

// DialectFor picks the renderer matching a DSN/driver name; sqlite is the
// fallback since that is what the embedded store speaks.
func DialectFor(name string) Dialect {
	switch name {
	case "postgres", "postgresql", "pgx":
		return PostgresDialect{}
	case "clickhouse":
		return ClickHouseDialect{}
	default:
		return SQLiteDialect{}
	}
}

// escapeKey guards the single-quoted JSON key embedded in rendered SQL.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, "'", "''")
}
