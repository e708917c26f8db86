package repository

import (
	"context"

	"homecare/internal/domain"
)

// NurseRepository defines the persistence operations for nurses.
type NurseRepository interface {
	// Create adds a new nurse.
	Create(ctx context.Context, nurse *domain.Nurse) error

	// GetByID retrieves a nurse by ID.
	GetByID(ctx context.Context, id string) (*domain.Nurse, error)

	// GetByPhone retrieves a nurse by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Nurse, error)

	// GetByIDs retrieves the nurses with the given IDs; missing IDs are
	// skipped, not an error.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Nurse, error)

	// GetAll retrieves all nurses.
	GetAll(ctx context.Context) ([]*domain.Nurse, error)

	// UpdateStatus updates the status of a nurse.
	UpdateStatus(ctx context.Context, id string, status domain.NurseStatus) error

	// UpdateLocation stores the nurse's last known position.
	UpdateLocation(ctx context.Context, id string, loc domain.Location) error
}
