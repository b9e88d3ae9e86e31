package vectorindex

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const resilientInstrumentationName = "github.com/fyrsmithlabs/vaultd/internal/vectorindex"

// Compile-time check that Resilient implements Index.
var _ Index = (*Resilient)(nil)

// Resilient wraps a Backend into the total Index contract.
//
// Availability moves Uninitialized -> Available -> Degraded. Degraded
// is sticky for the process lifetime: once the backend misbehaves,
// vaultd commits to text-only search rather than retrying per call.
// The state is the only shared mutable resource across requests; it is
// a plain atomic because concurrent calls racing to set Degraded is
// benign, both land on Degraded.
type Resilient struct {
	backend Backend
	logger  *zap.Logger
	state   atomic.Int32

	opsTotal metric.Int64Counter
}

// NewResilient wraps backend. A nil backend yields a permanently
// degraded index, which keeps the rest of vaultd functional when the
// vector backend could not even be constructed.
func NewResilient(backend Backend, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resilient{
		backend: backend,
		logger:  logger,
	}

	meter := otel.Meter(resilientInstrumentationName)
	opsTotal, err := meter.Int64Counter(
		"vaultd.vectorindex.ops_total",
		metric.WithDescription("Vector index operations by op (upsert, remove, query) and outcome (ok, skipped, failed)."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create vectorindex ops counter", zap.Error(err))
	}
	r.opsTotal = opsTotal

	if backend == nil {
		logger.Warn("no vector backend; starting degraded (text-only search)")
		r.state.Store(int32(StateDegraded))
	}

	return r
}

// State reports the current availability state.
func (r *Resilient) State() State {
	return State(r.state.Load())
}

// degraded reports whether backend calls should be skipped.
func (r *Resilient) degraded() bool {
	return r.State() == StateDegraded
}

// markAvailable records a successful backend interaction. It never
// resurrects a degraded index.
func (r *Resilient) markAvailable() {
	r.state.CompareAndSwap(int32(StateUninitialized), int32(StateAvailable))
}

// markDegraded flips the index into its terminal degraded state.
func (r *Resilient) markDegraded(op string, err error) {
	r.state.Store(int32(StateDegraded))
	r.logger.Warn("vector backend failed; degrading to text-only search",
		zap.String("op", op),
		zap.Error(err),
	)
}

func (r *Resilient) record(ctx context.Context, op, outcome string) {
	if r.opsTotal == nil {
		return
	}
	r.opsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// Upsert stores the vector for id best-effort. The input id is always
// returned so callers can record it as a best-effort reference; use
// State to learn whether indexing actually took.
func (r *Resilient) Upsert(ctx context.Context, id, text string, metadata map[string]any) string {
	if r.degraded() {
		r.record(ctx, "upsert", "skipped")
		return id
	}

	if err := r.backend.Upsert(ctx, id, text, metadata); err != nil {
		r.markDegraded("upsert", err)
		r.record(ctx, "upsert", "failed")
		return id
	}

	r.markAvailable()
	r.record(ctx, "upsert", "ok")
	return id
}

// Remove deletes the vector for id best-effort.
func (r *Resilient) Remove(ctx context.Context, id string) {
	if r.degraded() {
		r.record(ctx, "remove", "skipped")
		return
	}

	if err := r.backend.Remove(ctx, id); err != nil {
		r.markDegraded("remove", err)
		r.record(ctx, "remove", "failed")
		return
	}

	r.markAvailable()
	r.record(ctx, "remove", "ok")
}

// QueryNearest returns up to limit hits, or nil when the backend is
// unavailable or fails. Callers cannot distinguish "no matches" from
// "degraded"; both are an empty result.
func (r *Resilient) QueryNearest(ctx context.Context, text string, limit int) []Hit {
	if r.degraded() {
		r.record(ctx, "query", "skipped")
		return nil
	}

	hits, err := r.backend.QueryNearest(ctx, text, limit)
	if err != nil {
		r.markDegraded("query", err)
		r.record(ctx, "query", "failed")
		return nil
	}

	r.markAvailable()
	r.record(ctx, "query", "ok")
	return hits
}

// Close closes the underlying backend.
func (r *Resilient) Close() error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Close()
}
