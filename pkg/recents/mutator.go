package recents

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	rerrors "github.com/otherjamesbrown/recents/pkg/errors"
	"github.com/otherjamesbrown/recents/pkg/logging"
)

// DeleteChunkSize is the most ids removed by a single store delete.
const DeleteChunkSize = 30

// Outcome is how a mutation ended.
type Outcome int

const (
	// OutcomeCompleted means the work ran. Err tells whether it succeeded.
	OutcomeCompleted Outcome = iota
	// OutcomeDenied means write access was refused and nothing was scheduled.
	OutcomeDenied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDenied:
		return "denied"
	default:
		return fmt.Sprintf("outcome_%d", int(o))
	}
}

// MutationResult is delivered exactly once per mutation.
type MutationResult struct {
	Outcome Outcome
	// Affected is the number of ids deleted or calls restored.
	Affected int
	Err      error
}

// Notifier is told about successful mutations. Failures are logged and
// never affect the mutation's result.
type Notifier interface {
	CallsDeleted(ctx context.Context, ids []int64) error
	CallsCleared(ctx context.Context) error
	CallsRestored(ctx context.Context, count int) error
}

// Mutator applies deletions and restores to the call history.
type Mutator struct {
	records  RecordSource
	gate     PermissionGate
	runner   Runner
	notifier Notifier

	logger  logging.Logger
	metrics *Metrics
	tracer  *tracer
}

// NewMutator creates a mutator. Records, Gate and Runner are required.
func NewMutator(deps Dependencies, opts ...Option) (*Mutator, error) {
	if deps.Records == nil || deps.Gate == nil || deps.Runner == nil {
		return nil, fmt.Errorf("mutator needs records, gate and runner: %w", rerrors.ErrValidation)
	}
	s := newSettings(opts)
	return &Mutator{
		records:  deps.Records,
		gate:     deps.Gate,
		runner:   deps.Runner,
		notifier: deps.Notifier,
		logger:   s.logger.With(logging.Component("mutator")),
		metrics:  s.metrics,
		tracer:   newTracer(),
	}, nil
}

// Chunk splits s into consecutive slices of at most size elements.
func Chunk[T any](s []T, size int) [][]T {
	if size <= 0 || len(s) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		chunks = append(chunks, s[start:end])
	}
	return chunks
}

// DeleteByIDs removes the records in chunks of DeleteChunkSize, one chunk at
// a time. Every chunk is issued even after a failure; chunks that succeeded
// stay deleted and the failures are returned together.
func (m *Mutator) DeleteByIDs(ctx context.Context, ids []int64) <-chan MutationResult {
	ids = append([]int64(nil), ids...)
	return m.dispatch(ctx, "delete_by_ids", func(ctx context.Context) (affected int, err error) {
		chunks := Chunk(ids, DeleteChunkSize)
		ctx, span := m.tracer.startMutation(ctx, SpanDeleteByIDs,
			attribute.Int(AttrIDCount, len(ids)),
			attribute.Int(AttrChunkCount, len(chunks)))
		defer func() { endSpan(span, err) }()

		var (
			deleted []int64
			errs    []error
		)
		for i, chunk := range chunks {
			if err := m.records.Delete(ctx, chunk); err != nil {
				m.logger.WithContext(ctx).Error("Delete chunk failed",
					logging.F("chunk", i), logging.F("size", len(chunk)), logging.Err(err))
				errs = append(errs, fmt.Errorf("chunk %d: %w", i, err))
				continue
			}
			deleted = append(deleted, chunk...)
		}
		affected = len(deleted)

		m.metrics.DeletedRecords.Add(float64(affected))
		if affected > 0 && m.notifier != nil {
			if err := m.notifier.CallsDeleted(ctx, deleted); err != nil {
				m.logger.WithContext(ctx).Warn("Failed to publish deletion", logging.Err(err))
			}
		}
		if len(errs) > 0 {
			return affected, rerrors.NewStoreError("delete", errors.Join(errs...))
		}
		return affected, nil
	})
}

// DeleteAll erases the whole call history after write access is granted.
func (m *Mutator) DeleteAll(ctx context.Context) <-chan MutationResult {
	if !m.gate.RequestWriteAccess(ctx) {
		return m.denied("delete_all")
	}
	return m.dispatch(ctx, "delete_all", func(ctx context.Context) (_ int, err error) {
		ctx, span := m.tracer.startMutation(ctx, SpanDeleteAll)
		defer func() { endSpan(span, err) }()

		if err := m.records.DeleteAll(ctx); err != nil {
			return 0, rerrors.NewStoreError("delete all", err)
		}
		if m.notifier != nil {
			if err := m.notifier.CallsCleared(ctx); err != nil {
				m.logger.WithContext(ctx).Warn("Failed to publish clear", logging.Err(err))
			}
		}
		return 0, nil
	})
}

// Restore writes calls back to the store, oldest first, in one batch after
// write access is granted.
func (m *Mutator) Restore(ctx context.Context, calls []EnrichedCall) <-chan MutationResult {
	if !m.gate.RequestWriteAccess(ctx) {
		return m.denied("restore")
	}

	ordered := append([]EnrichedCall(nil), calls...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTS < ordered[j].StartTS
	})

	return m.dispatch(ctx, "restore", func(ctx context.Context) (_ int, err error) {
		ctx, span := m.tracer.startMutation(ctx, SpanRestore, attribute.Int(AttrCallCount, len(ordered)))
		defer func() { endSpan(span, err) }()

		if len(ordered) == 0 {
			return 0, nil
		}
		records := make([]RawRecord, 0, len(ordered))
		for _, c := range ordered {
			records = append(records, c.toRawRecord())
		}
		if err := m.records.InsertBatch(ctx, records); err != nil {
			return 0, rerrors.NewStoreError("insert", err)
		}
		m.metrics.RestoredCalls.Add(float64(len(records)))
		if m.notifier != nil {
			if err := m.notifier.CallsRestored(ctx, len(records)); err != nil {
				m.logger.WithContext(ctx).Warn("Failed to publish restore", logging.Err(err))
			}
		}
		return len(records), nil
	})
}

func (m *Mutator) denied(op string) <-chan MutationResult {
	m.metrics.RecordMutation(op, OutcomeDenied)
	m.logger.Info("Write access denied", logging.F("operation", op))
	out := make(chan MutationResult, 1)
	out <- MutationResult{Outcome: OutcomeDenied, Err: fmt.Errorf("%s: %w", op, rerrors.ErrPermissionDenied)}
	close(out)
	return out
}

func (m *Mutator) dispatch(ctx context.Context, op string, work func(context.Context) (int, error)) <-chan MutationResult {
	out := make(chan MutationResult, 1)
	task := func(context.Context) error {
		affected, err := work(ctx)
		m.metrics.RecordMutation(op, OutcomeCompleted)
		out <- MutationResult{Outcome: OutcomeCompleted, Affected: affected, Err: err}
		close(out)
		return err
	}
	if err := m.runner.Submit(ctx, task); err != nil {
		m.logger.Error("Failed to schedule mutation", logging.F("operation", op), logging.Err(err))
		out <- MutationResult{Outcome: OutcomeCompleted, Err: fmt.Errorf("schedule %s: %w", op, err)}
		close(out)
	}
	return out
}

// Wait blocks for a mutation's result or ctx.
func Wait(ctx context.Context, ch <-chan MutationResult) (MutationResult, error) {
	select {
	case res := <-ch:
		return res, res.Err
	case <-ctx.Done():
		return MutationResult{}, ctx.Err()
	}
}
