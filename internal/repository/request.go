package repository

import (
	"context"

	"homecare/internal/domain"
)

// RequestRepository defines the persistence operations for service requests.
type RequestRepository interface {
	// Create persists a new service request with its candidate snapshot.
	Create(ctx context.Context, req *domain.ServiceRequest) error

	// GetByID retrieves a service request by ID.
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)

	// ListByPatient retrieves a patient's requests, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]*domain.ServiceRequest, error)

	// Update updates an existing request unconditionally.
	Update(ctx context.Context, req *domain.ServiceRequest) error

	// UpdateIfStatus writes the request only while its stored status still
	// equals expected. Returns ErrStaleState when another writer moved the
	// status first. This conditional write is the concurrency-safety
	// mechanism for offer responses; there are no locks around it.
	UpdateIfStatus(ctx context.Context, req *domain.ServiceRequest, expected domain.RequestStatus) error
}
