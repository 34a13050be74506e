// Package store persists service intervals and research logs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interval-research/internal/model"
)

// ErrNotFound is returned when a row does not exist (or belongs to another
// user).
var ErrNotFound = eris.New("not found")

// LogFilter specifies criteria for listing research logs.
type LogFilter struct {
	Make       string    `json:"make,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	OnlyFailed bool      `json:"only_failed,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// IntervalTx is the interval access available inside one write transaction.
type IntervalTx interface {
	// ActiveIntervals returns the car's active intervals, locking them for
	// the remainder of the transaction where the driver supports it.
	ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error)
	// InsertInterval inserts iv and sets its ID.
	InsertInterval(ctx context.Context, iv *model.ServiceInterval) error
	// UpdateInterval overwrites the mutable columns of the row with iv.ID.
	UpdateInterval(ctx context.Context, iv *model.ServiceInterval) error
}

// Store defines the persistence interface for the research engine.
type Store interface {
	// Intervals
	ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error)
	GetInterval(ctx context.Context, userID, id int64) (*model.ServiceInterval, error)
	DeactivateInterval(ctx context.Context, userID, id int64) error
	// InTx runs fn in a single write transaction. Any error from fn rolls
	// back every write made through tx.
	InTx(ctx context.Context, fn func(tx IntervalTx) error) error

	// Research logs
	SaveResearchLog(ctx context.Context, log *model.ResearchLog) error
	ListResearchLogs(ctx context.Context, filter LogFilter) ([]model.ResearchLog, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
