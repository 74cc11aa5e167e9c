package core

import (
	"context"
	"time"
)

// OperationType represents the kind of persisted write.
type OperationType string

const (
	// OperationCreate represents an INSERT.
	OperationCreate OperationType = "CREATE"

	// OperationUpdate represents an UPDATE.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a DELETE.
	OperationDelete OperationType = "DELETE"
)

// Change describes a single write that has been applied to the database.
type Change struct {
	// ID uniquely identifies the change.
	ID string `json:"id"`

	// Table is the name of the table that was written.
	Table string `json:"table"`

	// Operation is the type of operation (CREATE, UPDATE, DELETE).
	Operation OperationType `json:"operation"`

	// Key is the primary key value of the record.
	Key interface{} `json:"key"`

	// Data holds the packed row for CREATE and UPDATE; nil for DELETE.
	Data Row `json:"data,omitempty"`

	// Timestamp is when the write happened.
	Timestamp time.Time `json:"timestamp"`

	// RetryCount tracks how many times a consumer has re-queued this change.
	RetryCount int `json:"retry_count"`
}

// ChangeFeed carries Change events from repositories to consumers.
type ChangeFeed interface {
	// Publish appends a change to the feed.
	Publish(ctx context.Context, change *Change) error

	// Consume removes and returns up to max changes, oldest first.
	// Returns an empty slice if nothing is available.
	Consume(ctx context.Context, max int) ([]*Change, error)

	// Size returns the (possibly approximate) number of pending changes.
	Size() int

	// Close releases the feed's resources.
	Close() error
}
