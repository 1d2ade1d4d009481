// Package dedup collapses near-simultaneous duplicate write calls into a
// single side-effecting call. It is a mitigation rather than a guarantee:
// duplicates that arrive before the first call has been tracked, or after
// the window has rolled past it, are not caught.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var dedupTracer = otel.Tracer("clinic.internal.dedup")

// ErrInFlight is returned by Do when an identical call was tracked but has
// not recorded a response yet.
var ErrInFlight = errors.New("dedup: duplicate request still in progress")

// Deduplicator tracks recent operation signatures in a Store.
type Deduplicator struct {
	store    Store
	capacity int
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
}

func New(store Store, capacity int, m *metrics.SchedulingMetrics, logger *logging.Logger) *Deduplicator {
	if store == nil {
		panic("dedup: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Deduplicator{store: store, capacity: capacity, logger: logger, metrics: m}
}

// Check tracks the call's signature before the operation runs. It reports
// whether the call duplicates a recent one and, if that call finished, its
// cached response.
func (d *Deduplicator) Check(ctx context.Context, op string, params map[string]any) (bool, json.RawMessage, error) {
	ctx, span := dedupTracer.Start(ctx, "dedup.check")
	defer span.End()

	sig, err := Signature(op, params)
	if err != nil {
		return false, nil, err
	}
	span.SetAttributes(attribute.String("operation", op), attribute.String("signature", sig))

	seen, cached, err := d.store.Track(ctx, sig)
	if err != nil {
		span.RecordError(err)
		return false, nil, err
	}
	d.metrics.ObserveDedup(op, seen)
	if seen {
		d.logger.Warn("duplicate request detected",
			"operation", op,
			"signature", sig,
			"cached", cached != nil,
		)
	} else {
		d.logger.Debug("request tracked", "operation", op, "signature", sig)
	}
	span.SetAttributes(attribute.Bool("duplicate", seen))
	return seen, cached, nil
}

// Record caches the response of a completed operation.
func (d *Deduplicator) Record(ctx context.Context, op string, response any, params map[string]any) error {
	sig, err := Signature(op, params)
	if err != nil {
		return err
	}
	raw, ok := response.(json.RawMessage)
	if !ok {
		raw, err = json.Marshal(response)
		if err != nil {
			return fmt.Errorf("dedup: encode response: %w", err)
		}
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return d.store.Record(ctx, sig, raw)
}

// Forget drops the call's signature, typically after the operation failed,
// so a retry is executed rather than swallowed.
func (d *Deduplicator) Forget(ctx context.Context, op string, params map[string]any) error {
	sig, err := Signature(op, params)
	if err != nil {
		return err
	}
	return d.store.Forget(ctx, sig)
}

// Do runs fn unless an identical call is in the window. A duplicate returns
// the cached response with duplicate set, or ErrInFlight when the first call
// has not finished. A failed fn is forgotten so it can be retried.
func (d *Deduplicator) Do(ctx context.Context, op string, params map[string]any, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, bool, error) {
	seen, cached, err := d.Check(ctx, op, params)
	if err != nil {
		return nil, false, err
	}
	if seen {
		if cached == nil {
			return nil, true, ErrInFlight
		}
		return cached, true, nil
	}

	resp, err := fn(ctx)
	if err != nil {
		if ferr := d.Forget(ctx, op, params); ferr != nil {
			d.logger.Error("failed to forget dedup signature", "operation", op, "error", ferr)
		}
		return nil, false, err
	}
	if rerr := d.Record(ctx, op, resp, params); rerr != nil {
		d.logger.Error("failed to record dedup response", "operation", op, "error", rerr)
	}
	return resp, false, nil
}

// Clear drops every tracked signature.
func (d *Deduplicator) Clear(ctx context.Context) error {
	return d.store.Clear(ctx)
}

// Stats reports the window's fill level.
func (d *Deduplicator) Stats(ctx context.Context) (Stats, error) {
	n, err := d.store.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return newStats(n, d.capacity), nil
}
