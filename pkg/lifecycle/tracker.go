package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fakexrm/fakexrm/pkg/ordering"
	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

// Record is a created entity record awaiting cleanup.
type Record struct {
	Type ordering.TypeID
	ID   uuid.UUID

	seq uint64
}

// Deleter removes one record from the system under test.
type Deleter interface {
	Delete(ctx context.Context, typ ordering.TypeID, id uuid.UUID) error
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, typ ordering.TypeID, id uuid.UUID) error

// Delete implements Deleter.
func (f DeleterFunc) Delete(ctx context.Context, typ ordering.TypeID, id uuid.UUID) error {
	return f(ctx, typ, id)
}

// Tracker remembers the records a test created so they can be removed in a
// safe order afterwards. Every tracked type is registered with the graph.
type Tracker struct {
	graph *ordering.Graph

	mu      sync.Mutex
	records []Record
	seq     uint64

	tel *telemetry.Telemetry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTelemetry sets the logger, tracer, and metrics used by the tracker.
// Without it, Plan and Cleanup use the telemetry attached to their context.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(t *Tracker) {
		if tel != nil {
			t.tel = tel
		}
	}
}

// NewTracker creates a tracker over graph.
func NewTracker(graph *ordering.Graph, opts ...Option) *Tracker {
	t := &Tracker{graph: graph}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// telemetryFor returns the configured telemetry, or the one carried by ctx.
func (t *Tracker) telemetryFor(ctx context.Context) *telemetry.Telemetry {
	if t.tel != nil {
		return t.tel
	}
	return telemetry.FromTelemetryContext(ctx)
}

// Track registers an existing record for cleanup.
func (t *Tracker) Track(typ ordering.TypeID, id uuid.UUID) error {
	tel := t.telemetryFor(context.Background())

	if typ == "" {
		return ordering.NewPermanentError("entity type is required", nil).
			WithCode(ordering.ErrCodeValidation)
	}
	if err := t.graph.Add(typ); err != nil {
		tel.Logger.WithTypeID(string(typ)).
			WithField("code", ordering.ErrorCode(err)).
			WithField("transient", ordering.IsTransient(err)).
			WithError(err).
			Warn("Failed to register type")
		return fmt.Errorf("failed to register type %s: %w", typ, err)
	}

	t.mu.Lock()
	t.seq++
	t.records = append(t.records, Record{Type: typ, ID: id, seq: t.seq})
	t.mu.Unlock()

	tel.Metrics.RecordTracked(string(typ))
	tel.Logger.WithTypeID(string(typ)).WithRecordID(id.String()).Debug("Record tracked")
	return nil
}

// TrackNew generates an id for a record of typ and tracks it.
func (t *Tracker) TrackNew(typ ordering.TypeID) (uuid.UUID, error) {
	id := uuid.New()
	if err := t.Track(typ, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Len returns the number of records still tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Records returns the tracked records in the order Cleanup would delete them.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	records := append([]Record(nil), t.records...)
	t.mu.Unlock()
	return deletionSequence(t.graph.DeletionOrder(), records)
}

// Cleanup deletes every tracked record, children before parents and newest
// first within a type. Records whose deletion fails stay tracked and their
// errors are joined. Cancelling ctx stops the run before the next deletion.
func (t *Tracker) Cleanup(ctx context.Context, d Deleter) error {
	t.mu.Lock()
	pending := append([]Record(nil), t.records...)
	t.mu.Unlock()

	tel := t.telemetryFor(ctx)
	ctx, span := tel.Tracer.StartSpan(ctx, "lifecycle.cleanup",
		telemetry.AttrRecordCount.Int(len(pending)))

	logger := tel.Logger.NewComponentLogger("lifecycle")
	deleted := make(map[uint64]bool, len(pending))
	var errs []error

	for _, rec := range deletionSequence(t.graph.DeletionOrder(), pending) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup interrupted: %w", err))
			break
		}

		recLogger := logger.WithTypeID(string(rec.Type)).WithRecordID(rec.ID.String())
		if err := d.Delete(ctx, rec.Type, rec.ID); err != nil {
			tel.Metrics.RecordDeleted(string(rec.Type), "error")
			recLogger.WithError(err).Warn("Failed to delete record")
			errs = append(errs, fmt.Errorf("failed to delete %s %s: %w", rec.Type, rec.ID, err))
			continue
		}

		tel.Metrics.RecordDeleted(string(rec.Type), "ok")
		recLogger.Debug("Record deleted")
		deleted[rec.seq] = true
	}

	t.mu.Lock()
	kept := t.records[:0]
	for _, rec := range t.records {
		if !deleted[rec.seq] {
			kept = append(kept, rec)
		}
	}
	t.records = kept
	remaining := len(kept)
	t.mu.Unlock()

	err := errors.Join(errs...)
	logger.Infof("Cleanup deleted %d records, %d remain", len(deleted), remaining)
	telemetry.End(span, err)
	return err
}

// deletionSequence orders records by the graph's deletion order, newest
// first within a type.
func deletionSequence(order []ordering.TypeID, records []Record) []Record {
	byType := make(map[ordering.TypeID][]Record)
	for _, rec := range records {
		byType[rec.Type] = append(byType[rec.Type], rec)
	}

	out := make([]Record, 0, len(records))
	for _, typ := range order {
		recs := byType[typ]
		for i := len(recs) - 1; i >= 0; i-- {
			out = append(out, recs[i])
		}
		delete(byType, typ)
	}

	// Types registered after the order was read.
	for _, rec := range records {
		if _, ok := byType[rec.Type]; ok {
			out = append(out, rec)
		}
	}
	return out
}
