package database

import (
	"context"
)

// IdentityReader provides read access to the enrolled roster.
type IdentityReader interface {
	// ListAll returns every enrolled identity ordered by ID (enrollment order).
	ListAll(ctx context.Context) ([]Identity, error)
	// Get retrieves an identity by ID, returns nil if not found.
	Get(ctx context.Context, id int64) (*Identity, error)
	// Count returns the number of enrolled identities.
	Count(ctx context.Context) (int, error)
	// FindNearest returns up to limit identities ordered by Euclidean
	// distance to the given embedding, along with the distances.
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]Identity, []float64, error)
}

// IdentityWriter provides write access to the roster and attendance logs.
type IdentityWriter interface {
	IdentityReader

	// Append enrolls a new identity and returns its assigned ID.
	// Identities are append-only; there is no update or delete.
	Append(ctx context.Context, identity *Identity) (int64, error)
	// UpdateLog replaces the attendance log of an identity. This is the
	// only mutation allowed on an enrolled identity.
	UpdateLog(ctx context.Context, id int64, log []AttendanceRecord) error
}
