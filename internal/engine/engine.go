package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ffspoints/internal/point"
)

// Store is the write surface the engine drives. *store.Store implements it.
type Store interface {
	AddPoint(ctx context.Context, p point.Point) (point.Point, error)
	QueueUseCount(id string)
	AddCost(ctx context.Context, id string, steps int64, t float64) (bool, error)
	Commit(ctx context.Context) error
}

// DefaultCommitEvery is the number of processed reports between commits
// of the usecount batch.
const DefaultCommitEvery = 100

// Engine is the single-writer ingest loop.
//
// Thread-safety model:
//   - Report, ReportCost, Submit, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	store       Store
	clock       *Clock
	queue       *eventQueue
	commitEvery int

	// Owned by the Run goroutine.
	sinceCommit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCommitEvery sets how many reports are processed between commits.
// Values below 1 are ignored.
func WithCommitEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commitEvery = n
		}
	}
}

// New creates an Engine writing to s.
func New(s Store, opts ...Option) *Engine {
	clock := NewClock()
	e := &Engine{
		store:       s,
		clock:       clock,
		queue:       newEventQueue(clock),
		commitEvery: DefaultCommitEvery,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report queues a finished trial. reply may be nil; when set it receives
// exactly one Result and should be buffered. Returns false once the
// engine has stopped.
func (e *Engine) Report(p point.Point, reply chan<- Result) bool {
	trial := p
	return e.queue.Enqueue(Event{
		Type:  EventTypeTrial,
		Trial: &trial,
		reply: reply,
	})
}

// ReportCost queues a cost extension for id.
func (e *Engine) ReportCost(id string, steps int64, t float64, reply chan<- Result) bool {
	return e.queue.Enqueue(Event{
		Type:  EventTypeCost,
		Cost:  &Cost{PointID: id, Steps: steps, Time: t},
		reply: reply,
	})
}

// Submit reports a trial and waits for its result.
func (e *Engine) Submit(ctx context.Context, p point.Point) (point.Point, error) {
	reply := make(chan Result, 1)
	if !e.Report(p, reply) {
		return point.Point{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		return point.Point{}, ctx.Err()
	case r := <-reply:
		return r.Point, r.Err
	}
}

// Run processes reports until ctx is cancelled, Stop is called, or a
// write exhausts its retries. Pending usecounts are committed on the way
// out.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "commit_every", e.commitEvery)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				logEventError(event, err)
				if point.IsWriteExhausted(err) {
					e.queue.Close()
					e.drain(ErrStopped)
					return err
				}
			}
			if err := e.maybeCommit(ctx); err != nil {
				e.queue.Close()
				e.drain(ErrStopped)
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain(ctx.Err())
			if err := e.commit(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop; an empty queue then
			// means every report has been processed.
			if e.queue.Len() == 0 && e.stopped() {
				slog.Info("engine stopping: queue closed")
				return e.commit(ctx)
			}
		}
	}
}

// Stop closes the queue. Run processes what is already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of reports waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Clock returns the ticket clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// processEvent routes an event to its handler and delivers the reply.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	res := Result{Ticket: event.Ticket, Type: event.Type}

	switch event.Type {
	case EventTypeTrial:
		if event.Trial == nil {
			res.Err = fmt.Errorf("trial event %d missing point", event.Ticket)
			break
		}
		res.Point, res.Err = e.processTrial(ctx, *event.Trial)

	case EventTypeCost:
		if event.Cost == nil {
			res.Err = fmt.Errorf("cost event %d missing cost", event.Ticket)
			break
		}
		res.Found, res.Err = e.processCost(ctx, *event.Cost)

	default:
		res.Err = fmt.Errorf("unknown event type: %d", event.Type)
	}

	e.sinceCommit++
	if event.reply != nil {
		event.reply <- res
	}
	return res.Err
}

// processTrial inserts the point and charges its origin.
func (e *Engine) processTrial(ctx context.Context, p point.Point) (point.Point, error) {
	stored, err := e.store.AddPoint(ctx, p)
	if err != nil {
		return point.Point{}, fmt.Errorf("record trial %q: %w", p.ID, err)
	}
	e.store.QueueUseCount(stored.OriginID)

	slog.Debug("trial recorded",
		"point_id", stored.ID,
		"origin_id", stored.OriginID,
		"interface", stored.Interface,
		"success", stored.Success,
		"seq", stored.Seq,
	)
	return stored, nil
}

func (e *Engine) processCost(ctx context.Context, c Cost) (bool, error) {
	found, err := e.store.AddCost(ctx, c.PointID, c.Steps, c.Time)
	if err != nil {
		return false, fmt.Errorf("extend cost of %q: %w", c.PointID, err)
	}
	if !found {
		slog.Warn("cost report for unknown point", "point_id", c.PointID)
	}
	return found, nil
}

func (e *Engine) maybeCommit(ctx context.Context) error {
	if e.sinceCommit < e.commitEvery {
		return nil
	}
	return e.commit(ctx)
}

func (e *Engine) commit(ctx context.Context) error {
	e.sinceCommit = 0
	if err := e.store.Commit(ctx); err != nil {
		slog.Error("usecount commit failed", "error", err)
		return fmt.Errorf("engine commit: %w", err)
	}
	return nil
}

// drain fails every report still queued after Run decided to stop.
func (e *Engine) drain(cause error) {
	for {
		event, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		if event.reply != nil {
			event.reply <- Result{Ticket: event.Ticket, Type: event.Type, Err: cause}
		}
	}
}

// logEventError logs a report failure with enough context to resubmit it.
func logEventError(event Event, err error) {
	attrs := []any{
		"error", err,
		"ticket", event.Ticket,
		"event_type", event.Type.String(),
	}
	switch {
	case event.Trial != nil:
		attrs = append(attrs,
			"point_id", event.Trial.ID,
			"origin_id", event.Trial.OriginID,
			"interface", event.Trial.Interface,
		)
	case event.Cost != nil:
		attrs = append(attrs,
			"point_id", event.Cost.PointID,
			"steps", event.Cost.Steps,
		)
	}
	slog.Error("report processing failed", attrs...)
}
