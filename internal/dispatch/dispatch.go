// Package dispatch consumes canonical events from the bus and turns each
// into at most one posted reply: classify, draft through the reasoning
// engine, deliver via the originating platform's adapter. Events queued at
// the same moment are handled highest priority first.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/responder"
	"github.com/RevCBH/vigil/internal/source"
)

// Dispatcher drains the event bus and processes events one at a time.
type Dispatcher struct {
	bus       *event.Bus
	responder responder.Responder
	adapters  map[event.Source]source.Adapter
	dryRun    bool
	metrics   *Metrics
	log       *zap.Logger
}

// Opts configures a Dispatcher.
type Opts struct {
	Bus       *event.Bus
	Responder responder.Responder
	Adapters  map[event.Source]source.Adapter
	DryRun    bool
	Metrics   *Metrics
	Logger    *zap.Logger
}

func New(opts Opts) (*Dispatcher, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("at least one adapter is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{
		bus:       opts.Bus,
		responder: opts.Responder,
		adapters:  opts.Adapters,
		dryRun:    opts.DryRun,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}, nil
}

// drainTimeout bounds the final drain after the bus closes: every queued
// event gets attempted, but a wedged adapter cannot hold shutdown hostage.
const drainTimeout = 30 * time.Second

// Run consumes the bus until it closes or the context is cancelled.
// Each wakeup drains everything already queued into one batch so that a
// blocker mentioned after a feature request still gets answered first.
//
// Bus close is the graceful exit: the monitors mark an item's dedup key
// before publishing, so an event left on the bus would never be retried.
// Run therefore finishes the buffer on a fresh deadline after close
// instead of abandoning it. Cancellation is the hard abort and skips the
// drain.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case first := <-d.bus.Events():
			batch := d.drainInto([]event.Event{first})
			d.DispatchBatch(ctx, batch)
		case <-d.bus.Done():
			if batch := d.drainInto(nil); len(batch) > 0 {
				d.log.Info("draining bus on shutdown", zap.Int("events", len(batch)))
				drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
				d.DispatchBatch(drainCtx, batch)
				cancel()
			}
			return nil
		}
	}
}

// drainInto appends whatever is already queued on the bus without blocking.
func (d *Dispatcher) drainInto(batch []event.Event) []event.Event {
	for {
		select {
		case e := <-d.bus.Events():
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

// DispatchBatch classifies the batch, orders it by descending priority and
// processes each event. A failure on one event never blocks the rest.
func (d *Dispatcher) DispatchBatch(ctx context.Context, batch []event.Event) {
	type classified struct {
		ev  event.Event
		cls event.Classification
	}
	work := make([]classified, 0, len(batch))
	for _, ev := range batch {
		work = append(work, classified{ev: ev, cls: event.Classify(ev)})
	}
	// Stable: equal priorities keep arrival order.
	sort.SliceStable(work, func(i, j int) bool {
		return work[i].cls.Priority > work[j].cls.Priority
	})

	for _, w := range work {
		if ctx.Err() != nil {
			return
		}
		if err := d.dispatchOne(ctx, w.ev, w.cls); err != nil {
			d.log.Warn("event dispatch failed",
				zap.String("event", w.ev.ID),
				zap.Stringer("event_desc", w.ev),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ev event.Event, cls event.Classification) error {
	if d.metrics != nil {
		d.metrics.EventsDispatched.WithLabelValues(string(ev.Source), string(cls.Kind)).Inc()
	}
	d.log.Info("dispatching event",
		zap.String("event", ev.ID),
		zap.String("kind", string(cls.Kind)),
		zap.Int("priority", cls.Priority),
		zap.String("handler", string(cls.Handler)))

	reply, err := d.responder.Respond(ctx, responder.Request{
		Event:          ev,
		Classification: cls,
		Instructions:   instructionsFor(cls.Handler),
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.ResponderErrors.Inc()
		}
		return fmt.Errorf("drafting reply: %w", err)
	}
	if reply == nil || reply.Content == "" {
		d.log.Debug("engine declined to reply", zap.String("event", ev.ID))
		return nil
	}

	if d.dryRun {
		d.log.Info("dry run: suppressing reply",
			zap.String("event", ev.ID),
			zap.String("target", ev.TargetRef),
			zap.String("content", reply.Content))
		return nil
	}

	adapter, ok := d.adapters[ev.Source]
	if !ok {
		return fmt.Errorf("no adapter for source %q", ev.Source)
	}
	ref, err := adapter.Post(ctx, ev.TargetRef, reply.Content, ev.Actor)
	if err != nil {
		if d.metrics != nil {
			d.metrics.DeliveryFailures.Inc()
		}
		return fmt.Errorf("posting reply to %s: %w", ev.TargetRef, err)
	}
	if d.metrics != nil {
		d.metrics.RepliesPosted.Inc()
	}
	d.log.Info("reply posted",
		zap.String("event", ev.ID),
		zap.String("target", ev.TargetRef),
		zap.String("ref", ref))
	return nil
}

// instructionsFor maps a handler to the guidance prepended to the prompt.
func instructionsFor(h event.Handler) string {
	switch h {
	case event.HandlerTriage:
		return "Draft a tracker ticket from the message below: a one-line title, " +
			"a description, and reproduction steps when the message contains them."
	case event.HandlerPRReview:
		return "Summarize the pull request activity below and recommend the next " +
			"review step for the author."
	default:
		return "Draft a concise, helpful reply to the teammate's message below. " +
			"Answer directly from the provided context; say so when the context " +
			"is insufficient."
	}
}
