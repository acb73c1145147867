package analysis

import (
	"context"
	"strings"

	"github.com/winlife/gamelytics/internal/schema"
)

// Built-in calculation attribute names handled by the compiler rather than
// the path resolver.
const (
	attrEventCount          = "eventCount"
	attrUniqueUserCount     = "uniqueUserCount"
	attrAverageCountPerUser = "averageCountPerUser"
)

// Compile translates a declarative query into the aggregation IR. All
// failures happen here, before anything executes: precondition violations are
// ErrInvalidQuery, unresolvable paths ErrUnsupportedAttribute, unknown filter
// operators ErrUnsupportedOperator.
func Compile(ctx context.Context, q EventAnalysisQuery, schemas schema.Store) (*CompiledQuery, *QueryError) {
	if strings.TrimSpace(q.EventName) == "" {
		return nil, invalidQuery("eventName is required")
	}
	if q.StartTime > q.EndTime {
		return nil, invalidQuery("startTime %d is after endTime %d", q.StartTime, q.EndTime)
	}
	if strings.TrimSpace(q.GroupingAttribute) == "" {
		return nil, invalidQuery("groupingAttribute is required")
	}
	if len(q.CalculationAttributes) == 0 {
		return nil, invalidQuery("at least one calculation attribute is required")
	}
	if _, ok, err := schemas.EventSchema(ctx, q.EventName); err != nil {
		return nil, internalError("load schema for %s: %v", q.EventName, err)
	} else if !ok {
		return nil, invalidQuery("no schema defined for event %q", q.EventName)
	}

	groupExpr, groupAlias, qerr := ResolveGrouping(q.GroupingAttribute)
	if qerr != nil {
		return nil, qerr
	}

	out := &CompiledQuery{
		Select:  []SelectColumn{{Expr: groupExpr, Alias: groupAlias}},
		GroupBy: groupExpr,
		OrderBy: groupExpr,
	}

	// averageCountPerUser is derived after execution but forces its two base
	// aggregates into the select list.
	attrs := q.CalculationAttributes
	for _, attr := range attrs {
		if attr == attrAverageCountPerUser {
			out.NeedsAverageCountPerUser = true
			attrs = appendUnique(attrs, attrEventCount, attrUniqueUserCount)
			break
		}
	}

	seen := map[string]bool{}
	for _, attr := range attrs {
		var col SelectColumn
		switch attr {
		case attrAverageCountPerUser:
			continue // never an actual aggregate column
		case attrEventCount:
			col = SelectColumn{Expr: Aggregate{Fn: AggCount}, Alias: attrEventCount}
		case attrUniqueUserCount:
			col = SelectColumn{Expr: Aggregate{Fn: AggDistinctCount, Arg: colUserID}, Alias: attrUniqueUserCount}
		case "deviceId":
			// As a calculation attribute deviceId means "distinct device count".
			col = SelectColumn{Expr: Aggregate{Fn: AggDistinctCount, Arg: colDeviceID}, Alias: "deviceId"}
		default:
			expr, alias, qerr := ResolveCalculation(attr)
			if qerr != nil {
				return nil, qerr
			}
			col = SelectColumn{Expr: expr, Alias: alias}
		}
		if seen[col.Alias] {
			continue
		}
		seen[col.Alias] = true
		out.Select = append(out.Select, col)
	}

	// Implicit base filters, then the user's global filters.
	out.Filters = []Predicate{
		{Target: colEventName, Op: OpEq, Value: q.EventName},
		{Target: colTimestamp, Op: OpGe, Value: q.StartTime},
		{Target: colTimestamp, Op: OpLe, Value: q.EndTime},
		{Target: colUserID, Op: OpIsNotNull},
	}
	for _, f := range q.GlobalFilters {
		op, ok := parseOp(f.Operator)
		if !ok {
			return nil, unsupportedOperator(f.Operator)
		}
		target, qerr := ResolveFilterTarget(f.Attribute)
		if qerr != nil {
			return nil, qerr
		}
		if op.Numeric() {
			target = NumericCast{Arg: target}
		}
		p := Predicate{Target: target, Op: op}
		if !op.Unary() {
			p.Value = f.Value
		}
		out.Filters = append(out.Filters, p)
	}
	return out, nil
}

func appendUnique(attrs []string, extra ...string) []string {
	out := append([]string{}, attrs...)
	for _, e := range extra {
		found := false
		for _, a := range out {
			if a == e {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}
