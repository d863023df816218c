package store

import "github.com/prometheus/client_golang/prometheus"

// Collectors for point store metrics. They are package-level so that every
// Store in a process reports into the same series; cmd/ffspoints registers
// them through Collectors.
var (
	PointsInsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffspoints_points_inserted_total",
		Help: "Cumulative number of points inserted.",
	})
	WriteRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffspoints_write_retries_total",
		Help: "Cumulative number of write attempts retried after a transient SQLite failure.",
	})
	WritesExhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffspoints_writes_exhausted_total",
		Help: "Cumulative number of writes that failed after exhausting their retries.",
	})
	UseCountsFlushedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffspoints_usecount_increments_flushed_total",
		Help: "Cumulative sum of usecount increments written by counter flushes.",
	})
	FlushStatementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffspoints_flush_statements_total",
		Help: "Cumulative number of chunked usecount UPDATE statements executed.",
	})
)

// Collectors returns every store collector, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		PointsInsertedTotal,
		WriteRetriesTotal,
		WritesExhaustedTotal,
		UseCountsFlushedTotal,
		FlushStatementsTotal,
	}
}
