package analysis

import "strings"

// The attribute path mini-language shared by grouping, calculations and
// filters:
//
//	time.<unit>              day|week|month|hour bucket over the timestamp
//	parameter.<name>[@agg]   extraction from the parameter blob
//	userProperty.<name>[@agg] extraction from the property blob
//	userId | deviceId        direct columns
//
// Resolution is pure: no schema lookups, no side effects. Type checking is
// the validator's job at ingest time.

// Blob names a JSON column on the stored event.
type Blob int

const (
	BlobParameters Blob = iota
	BlobUserProperties
)

// TimeUnit is a supported time-bucket granularity.
type TimeUnit string

const (
	UnitDay   TimeUnit = "day"
	UnitWeek  TimeUnit = "week"
	UnitMonth TimeUnit = "month"
	UnitHour  TimeUnit = "hour"
)

// AggFn is an aggregation function applied to an extracted value.
type AggFn string

const (
	AggCount         AggFn = "count"
	AggDistinctCount AggFn = "distinctCount"
	AggSum           AggFn = "sum"
	AggAvg           AggFn = "avg"
	AggMax           AggFn = "max"
	AggMin           AggFn = "min"
)

// Expr is a node of the renderer-agnostic expression IR.
type Expr interface{ isExpr() }

// Column is a direct column on the events table.
type Column struct{ Name string }

// JSONField extracts one key from a blob column.
type JSONField struct {
	Source Blob
	Name   string
}

// TimeBucket truncates the event timestamp to a unit, rendered as a string so
// buckets group and order uniformly.
type TimeBucket struct{ Unit TimeUnit }

// NumericCast coerces an extracted value to a decimal type.
type NumericCast struct{ Arg Expr }

// Aggregate applies fn over arg; a nil arg means "every row" (count(*)).
type Aggregate struct {
	Fn  AggFn
	Arg Expr
}

func (Column) isExpr()      {}
func (JSONField) isExpr()   {}
func (TimeBucket) isExpr()  {}
func (NumericCast) isExpr() {}
func (Aggregate) isExpr()   {}

// Well-known direct columns.
var (
	colUserID    = Column{Name: "user_id"}
	colDeviceID  = Column{Name: "device_id"}
	colTimestamp = Column{Name: "timestamp"}
	colEventName = Column{Name: "event_name"}
)

// ResolveGrouping maps an attribute path to a grouping expression and its
// result alias. Aggregation suffixes are not allowed on grouping attributes.
func ResolveGrouping(attr string) (Expr, string, *QueryError) {
	base, agg := splitAgg(attr)
	if agg != "" {
		return nil, "", unsupportedAttribute(attr)
	}
	expr, err := resolveScalar(base)
	if err != nil {
		return nil, "", err
	}
	return expr, aliasFor(base), nil
}

// ResolveCalculation maps an attribute path (with optional @agg suffix) to an
// aggregate expression and its alias. distinctCount is the default; the
// numeric aggregations wrap the extraction in a cast.
func ResolveCalculation(attr string) (Expr, string, *QueryError) {
	base, aggName := splitAgg(attr)
	expr, err := resolveScalar(base)
	if err != nil {
		return nil, "", err
	}
	fn := AggDistinctCount
	if aggName != "" {
		switch AggFn(aggName) {
		case AggDistinctCount:
			fn = AggDistinctCount
		case AggSum, AggAvg, AggMax, AggMin:
			fn = AggFn(aggName)
		default:
			return nil, "", unsupportedAttribute(attr)
		}
	}
	arg := expr
	if fn != AggDistinctCount {
		arg = NumericCast{Arg: expr}
	}
	return Aggregate{Fn: fn, Arg: arg}, aliasFor(attr), nil
}

// ResolveFilterTarget maps an attribute path to the expression a filter
// predicate applies to. Aggregation suffixes make no sense here.
func ResolveFilterTarget(attr string) (Expr, *QueryError) {
	base, agg := splitAgg(attr)
	if agg != "" {
		return nil, unsupportedAttribute(attr)
	}
	return resolveScalar(base)
}

func resolveScalar(attr string) (Expr, *QueryError) {
	switch {
	case strings.HasPrefix(attr, "time."):
		unit := TimeUnit(strings.TrimPrefix(attr, "time."))
		switch unit {
		case UnitDay, UnitWeek, UnitMonth, UnitHour:
			return TimeBucket{Unit: unit}, nil
		}
		return nil, unsupportedAttribute(attr)
	case strings.HasPrefix(attr, "parameter."):
		name := strings.TrimPrefix(attr, "parameter.")
		if name == "" {
			return nil, unsupportedAttribute(attr)
		}
		return JSONField{Source: BlobParameters, Name: name}, nil
	case strings.HasPrefix(attr, "userProperty."):
		name := strings.TrimPrefix(attr, "userProperty.")
		if name == "" {
			return nil, unsupportedAttribute(attr)
		}
		return JSONField{Source: BlobUserProperties, Name: name}, nil
	case attr == "userId":
		return colUserID, nil
	case attr == "deviceId":
		return colDeviceID, nil
	}
	return nil, unsupportedAttribute(attr)
}

// splitAgg separates an optional @agg suffix from the attribute path.
func splitAgg(attr string) (base, agg string) {
	if i := strings.IndexByte(attr, '@'); i >= 0 {
		return attr[:i], attr[i+1:]
	}
	return attr, ""
}

// aliasFor builds the canonical result-column name: dots and the @agg marker
// become underscores, direct columns keep their request spelling.
func aliasFor(attr string) string {
	switch attr {
	case "userId", "deviceId":
		return attr
	}
	alias := strings.ReplaceAll(attr, ".", "_")
	return strings.ReplaceAll(alias, "@", "_")
}
