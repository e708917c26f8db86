package redis

import (
	"context"
	"time"
)

// PresenceStoreInterface defines the interface for nurse location operations.
type PresenceStoreInterface interface {
	UpdateLocation(ctx context.Context, nurseID string, lat, lng float64) error
	FindNearbyNurses(ctx context.Context, lat, lng, radiusKm float64) ([]NurseLocation, error)
	RemoveLocation(ctx context.Context, nurseID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRequestLock(ctx context.Context, requestID string, ttl time.Duration) (bool, error)
	ReleaseRequestLock(ctx context.Context, requestID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PresenceStoreInterface = (*PresenceStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
