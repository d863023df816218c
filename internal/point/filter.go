package point

// AllInterfaces selects every interface in a Filter.
const AllInterfaces = -1

// SuccessFilter restricts a query by trial outcome.
type SuccessFilter int

const (
	AnyOutcome SuccessFilter = iota
	OnlySuccess
	OnlyFailed
)

// UsageFilter restricts a query by usecount.
type UsageFilter int

const (
	AnyUsage UsageFilter = iota
	// OnlyUsed selects points with usecount >= 1.
	OnlyUsed
	// OnlyUnused selects points with usecount = 0.
	OnlyUnused
)

// Filter selects the rows an aggregate or listing runs over.
// The zero value is not useful; start from ForInterface or AllPoints.
type Filter struct {
	Interface          int
	Success            SuccessFilter
	Usage              UsageFilter
	OriginID           string
	IncludeDeactivated bool
}

// ForInterface selects the active points of one interface.
func ForInterface(iface int) Filter {
	return Filter{Interface: iface}
}

// AllPoints selects the active points of every interface.
func AllPoints() Filter {
	return Filter{Interface: AllInterfaces}
}

// Successful narrows the filter to successful points.
func (f Filter) Successful() Filter {
	f.Success = OnlySuccess
	return f
}

// Failed narrows the filter to failed points.
func (f Filter) Failed() Filter {
	f.Success = OnlyFailed
	return f
}

// Used narrows the filter to points with usecount >= 1.
func (f Filter) Used() Filter {
	f.Usage = OnlyUsed
	return f
}

// Unused narrows the filter to points with usecount = 0.
func (f Filter) Unused() Filter {
	f.Usage = OnlyUnused
	return f
}

// WithOrigin narrows the filter to children of origin.
func (f Filter) WithOrigin(origin string) Filter {
	f.OriginID = origin
	return f
}

// WithDeactivated includes soft-deleted points.
func (f Filter) WithDeactivated() Filter {
	f.IncludeDeactivated = true
	return f
}

// Column names a numeric field that can be aggregated.
type Column string

const (
	ColumnInterface Column = "interface"
	ColumnCalcSteps Column = "calc_steps"
	ColumnCTime     Column = "ctime"
	ColumnRuntime   Column = "runtime"
	ColumnRunCount  Column = "run_count"
	ColumnWeight    Column = "weight"
	ColumnRCValue   Column = "rc_value"
	ColumnLambdaPos Column = "lambda_pos"
	ColumnUseCount  Column = "usecount"
)

// Valid reports whether c is one of the known columns.
func (c Column) Valid() bool {
	switch c {
	case ColumnInterface, ColumnCalcSteps, ColumnCTime, ColumnRuntime,
		ColumnRunCount, ColumnWeight, ColumnRCValue, ColumnLambdaPos, ColumnUseCount:
		return true
	}
	return false
}

// AggregateKind is the reduction applied by an aggregate query.
type AggregateKind string

const (
	Count AggregateKind = "count"
	Sum   AggregateKind = "sum"
	Max   AggregateKind = "max"
	Avg   AggregateKind = "avg"
)

// Aggregate describes a reduction over one column. Column is ignored for Count.
type Aggregate struct {
	Kind   AggregateKind
	Column Column
}

// CountOf returns a row-count aggregate.
func CountOf() Aggregate { return Aggregate{Kind: Count} }

// SumOf returns a sum aggregate over c.
func SumOf(c Column) Aggregate { return Aggregate{Kind: Sum, Column: c} }

// MaxOf returns a max aggregate over c.
func MaxOf(c Column) Aggregate { return Aggregate{Kind: Max, Column: c} }

// AvgOf returns a mean aggregate over c.
func AvgOf(c Column) Aggregate { return Aggregate{Kind: Avg, Column: c} }
