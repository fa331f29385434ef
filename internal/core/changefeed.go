package core

import (
	"context"
	"time"
)

// ChangeOp is the kind of table mutation.
type ChangeOp string

const (
	// ChangeInsert is a new row.
	ChangeInsert ChangeOp = "INSERT"

	// ChangeUpdate is an edited cell.
	ChangeUpdate ChangeOp = "UPDATE"

	// ChangeDelete is a removed row.
	ChangeDelete ChangeOp = "DELETE"

	// ChangeSchema is an added, reconfigured or deleted column.
	ChangeSchema ChangeOp = "SCHEMA"
)

// ChangeEvent records one mutation of a table. Derived values that read the
// table (rollups, lookups, counts) are stale once an event with a higher
// revision has been published.
type ChangeEvent struct {
	// Table is the id of the mutated table.
	Table string `json:"table"`

	// Op is the kind of mutation.
	Op ChangeOp `json:"op"`

	// RowID is the affected row; empty for schema changes.
	RowID string `json:"rowId,omitempty"`

	// Column is the affected column; empty for whole-row changes.
	Column string `json:"column,omitempty"`

	// Revision is the table revision after the mutation.
	Revision uint64 `json:"revision"`

	// Timestamp is when the mutation happened.
	Timestamp time.Time `json:"timestamp"`
}

// ChangeQueue carries change events from the table layer to consumers such
// as the derived-value cache invalidator.
type ChangeQueue interface {
	// Enqueue adds an event to the queue.
	Enqueue(ctx context.Context, event *ChangeEvent) error

	// Dequeue retrieves up to batchSize events in FIFO order.
	// Returns an empty slice if no events are available.
	Dequeue(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the (possibly approximate) number of queued events.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
