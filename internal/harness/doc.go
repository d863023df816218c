// Package harness runs scripted scenarios against a fresh point store.
//
// A scenario reports trials and cost extensions through the ingest engine,
// completes interfaces, deactivates points and then asserts on the final
// weights, usecounts, traced costs and crossing estimates.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	steps:
//	  - action: report
//	    point: {id: r1, origin: escape, interface: 0, payload: cfg, calc_steps: 10, weight: 0.5}
//	  - action: cost
//	    id: r1
//	    steps: 4
//	    time: 0.5
//	  - action: complete
//	    interface: 1
//	    mode: enrich
//	    expect_error: DEGENERATE_WEIGHT
//	  - action: deactivate
//	    id: r1
//	  - action: commit
//	assertions:
//	  - {type: weight, id: r1, expect: 0.5}
//	  - {type: usecount, id: r1, expect: 2}
//	  - {type: trace_cost, id: a, expect: 15}
//	  - {type: count, interface: 1, expect: 3}
//	  - {type: estimate, interface: 1, field: probability, expect: 0.5}
//
// A step without expect_error must succeed. Steps run in order: each
// report is committed before the next step unless commit_every says
// otherwise.
//
// # Golden Files
//
// RunWithGolden compares the step trace and every stored point, ordered by
// seq, against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
