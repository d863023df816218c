// Package engine serializes worker reports into the point store.
//
// Trial workers run concurrently but the store has a single writer. The
// engine sits between them:
//
//  1. Workers call Report or ReportCost from any goroutine. Each report is
//     stamped with an arrival ticket and appended to a FIFO queue.
//  2. Engine.Run dequeues reports one at a time in arrival order.
//  3. A trial is inserted as a point and its origin's usecount is queued in
//     the store's counter batch. A cost report extends an existing point.
//  4. Every commitEvery reports the pending usecounts are committed.
//
// Per-report failures (invalid point, unknown origin, missing cost target)
// are logged and delivered on the report's reply channel; Run keeps going.
// A WRITE_EXHAUSTED failure means the store is unusable and stops Run.
package engine
