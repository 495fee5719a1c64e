// Package store provides the persistence boundary for ledger tables.
//
// Tables cross this boundary as opaque JSON array-of-arrays blobs under a
// named slot: the first element is the header row in canonical column order,
// every subsequent element a row of equal length. The reconciliation engine
// has no knowledge of how a Repository durably persists a slot.
package store

import (
	"context"
	"errors"
	"time"
)

// Well-known slot names used by the reconciliation pipeline.
const (
	SlotCurrent  = "ledger:current"
	SlotOriginal = "ledger:original"
)

// ErrSlotNotFound is returned when a slot holds no table.
var ErrSlotNotFound = errors.New("slot not found")

// Repository reads and writes ledger tables keyed by slot name.
type Repository interface {
	// Load returns the table stored under slot, or ErrSlotNotFound.
	Load(ctx context.Context, slot string) ([][]string, error)

	// Save stores the table under slot, replacing any previous value.
	Save(ctx context.Context, slot string, table [][]string) error

	// Delete removes a slot. Deleting an absent slot is not an error.
	Delete(ctx context.Context, slot string) error
}

// OperationRecord is one entry in the reconciliation audit trail.
type OperationRecord struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Slot         string    `json:"slot"`
	RowsAffected int       `json:"rowsAffected"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuditLogger records reconciliation operations for later review. Implemented
// by the Postgres repository; the in-memory repository keeps records in a
// bounded slice.
type AuditLogger interface {
	LogOperation(ctx context.Context, rec OperationRecord) error
	RecentOperations(ctx context.Context, limit int) ([]OperationRecord, error)
}
