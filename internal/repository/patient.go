package repository

import (
	"context"

	"homecare/internal/domain"
)

// PatientRepository defines the persistence operations for patients.
type PatientRepository interface {
	// Create adds a new patient.
	Create(ctx context.Context, patient *domain.Patient) error

	// GetByID retrieves a patient by ID.
	GetByID(ctx context.Context, id string) (*domain.Patient, error)

	// UpdatePreferences replaces the patient's matching preferences.
	UpdatePreferences(ctx context.Context, id string, prefs domain.MatchPreferences) error
}
