package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/resilience"
	"github.com/sells-group/interval-research/internal/store"
)

// ErrReconciliation matches every error returned when a batch could not be
// written. Nothing from the batch was persisted.
var ErrReconciliation = eris.New("reconciliation failed")

// BatchError describes a failed upsert batch.
type BatchError struct {
	CarID int64
	Items int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("reconcile: car %d: batch of %d: %v", e.CarID, e.Items, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Is reports true for ErrReconciliation.
func (e *BatchError) Is(target error) bool { return target == ErrReconciliation }

// Summary counts the writes of a committed batch.
type Summary struct {
	Inserted  int                     `json:"inserted" yaml:"inserted"`
	Updated   int                     `json:"updated" yaml:"updated"`
	Intervals []model.ServiceInterval `json:"intervals" yaml:"intervals"`
}

// Reconciler applies candidates to stored intervals.
type Reconciler struct {
	store   store.Store
	backoff resilience.Backoff
	now     func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBackoff sets the retry schedule for batches aborted by transient
// storage errors (lock contention, serialization failures).
func WithBackoff(b resilience.Backoff) Option {
	return func(r *Reconciler) { r.backoff = b }
}

// New creates a Reconciler backed by st.
func New(st store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   st,
		backoff: resilience.DefaultBackoff(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// UpsertOne applies a single candidate.
func (r *Reconciler) UpsertOne(ctx context.Context, userID, carID int64, c model.Candidate) (*model.ServiceInterval, error) {
	sum, err := r.Upsert(ctx, userID, carID, []model.Candidate{c})
	if err != nil {
		return nil, err
	}
	return &sum.Intervals[0], nil
}

// Upsert applies cands to the car's active intervals in one transaction.
// The snapshot of existing rows is read once, inside that transaction.
// Invalid candidates reject the whole batch before storage is touched.
func (r *Reconciler) Upsert(ctx context.Context, userID, carID int64, cands []model.Candidate) (*Summary, error) {
	log := zap.L().With(
		zap.String("component", "reconcile"),
		zap.Int64("user_id", userID),
		zap.Int64("car_id", carID),
	)

	clean, err := model.SanitizeAll(cands)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: validate batch")
	}
	if len(clean) == 0 {
		return &Summary{}, nil
	}

	sum, err := resilience.RetryVal(ctx, r.backoff, "reconcile batch", func(ctx context.Context) (*Summary, error) {
		return r.apply(ctx, userID, carID, clean)
	})
	if err != nil {
		log.Error("reconcile: batch rolled back", zap.Int("items", len(clean)), zap.Error(err))
		return nil, &BatchError{CarID: carID, Items: len(clean), Err: err}
	}

	log.Info("reconcile: batch committed",
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
	)
	return sum, nil
}

// apply writes one attempt of the batch. The snapshot of existing rows is
// read inside the same transaction as the writes.
func (r *Reconciler) apply(ctx context.Context, userID, carID int64, clean []model.Candidate) (*Summary, error) {
	sum := &Summary{}
	err := r.store.InTx(ctx, func(tx store.IntervalTx) error {
		existing, err := tx.ActiveIntervals(ctx, userID, carID)
		if err != nil {
			return err
		}

		for _, op := range Plan(existing, clean, userID, carID, r.now()) {
			switch op.Kind {
			case OpInsert:
				err = tx.InsertInterval(ctx, op.Interval)
				sum.Inserted++
			case OpUpdate:
				err = tx.UpdateInterval(ctx, op.Interval)
				sum.Updated++
			}
			if err != nil {
				return eris.Wrapf(err, "%s %q", op.Kind, op.Interval.ServiceItem)
			}
			sum.Intervals = append(sum.Intervals, *op.Interval)
		}
		return nil
	})
	if resilience.IsUniqueViolation(err) {
		// A concurrent writer inserted the same item first; the next
		// attempt sees its row and updates it instead.
		return nil, resilience.MarkTransient(err)
	}
	if err != nil {
		return nil, err
	}
	return sum, nil
}
