package analysis

// EventAnalysisQuery is the declarative query an analyst submits: one event
// name, a time window, an ordered list of requested metrics, exactly one
// grouping attribute, and optional global filters.
type EventAnalysisQuery struct {
	StartTime             int64             `json:"startTime"` // inclusive, epoch millis
	EndTime               int64             `json:"endTime"`   // inclusive, epoch millis
	EventName             string            `json:"eventName"`
	CalculationAttributes []string          `json:"calculationAttributes"`
	GroupingAttribute     string            `json:"groupingAttribute"`
	GlobalFilters         []FilterCondition `json:"globalFilters"`
}

// FilterCondition is one user-supplied predicate.
type FilterCondition struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// FilterOp is a supported predicate operator.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
	OpContains
	OpNotContains
	OpIsNull
	OpIsNotNull
)

// parseOp maps the wire operator spelling to its FilterOp.
func parseOp(op string) (FilterOp, bool) {
	switch op {
	case "=":
		return OpEq, true
	case "!=":
		return OpNe, true
	case ">":
		return OpGt, true
	case "<":
		return OpLt, true
	case ">=":
		return OpGe, true
	case "<=":
		return OpLe, true
	case "contains":
		return OpContains, true
	case "not contains":
		return OpNotContains, true
	case "isNull":
		return OpIsNull, true
	case "isNotNull":
		return OpIsNotNull, true
	}
	return 0, false
}

// Numeric reports whether the operator compares magnitudes, which requires a
// decimal cast of the extracted value.
func (op FilterOp) Numeric() bool {
	switch op {
	case OpGt, OpLt, OpGe, OpLe:
		return true
	}
	return false
}

// Unary reports whether the operator takes no bound value.
func (op FilterOp) Unary() bool { return op == OpIsNull || op == OpIsNotNull }

// SelectColumn is one (expression, alias) pair of the compiled select list.
type SelectColumn struct {
	Expr  Expr
	Alias string
}

// Predicate is one compiled filter: target op value, ANDed with its peers.
type Predicate struct {
	Target Expr
	Op     FilterOp
	Value  any
}

// CompiledQuery is the intermediate representation handed to a renderer. The
// group and order keys are expressions, not aliases, so renderers never
// depend on alias quoting rules.
type CompiledQuery struct {
	Select  []SelectColumn
	Filters []Predicate
	GroupBy Expr
	OrderBy Expr

	// NeedsAverageCountPerUser marks that the shaper must derive
	// averageCountPerUser from the eventCount and uniqueUserCount columns.
	NeedsAverageCountPerUser bool
}

// Aliases returns the select-list aliases in order; the executor's raw rows
// are zipped against this positionally.
func (q *CompiledQuery) Aliases() []string {
	out := make([]string, len(q.Select))
	for i, c := range q.Select {
		out[i] = c.Alias
	}
	return out
}
