package store

import "context"

// Keys used by the attendance state machines. Every persisted value is JSON.
const (
	KeyCurrentUser   = "currentUser"
	KeyActiveSession = "activeAttendanceSession"
	KeyRecords       = "attendanceRecords"
)

// KV is the persistence contract: a synchronous key-value store holding one
// JSON document per key. Implementations are injected into the state machines
// so tests run on Memory while deployments share state through Redis or
// Postgres.
type KV interface {
	// Get returns the stored value and true, or ok=false when the key is
	// absent. Absence is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
