package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"homecare/internal/domain"
	"homecare/internal/repository"
)

// PatientRepository is a PostgreSQL implementation of repository.PatientRepository.
type PatientRepository struct {
	q Querier
}

// NewPatientRepository creates a new PostgreSQL patient repository.
func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{q: db}
}

// Create adds a new patient.
func (r *PatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	query := `
		INSERT INTO patients (id, name, phone, email, max_distance_km, price_min, price_max, preferred_specialties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Phone,
		patient.Email,
		nullFloat(patient.Preferences.MaxDistanceKm),
		nullFloat(patient.Preferences.PriceMin),
		nullFloat(patient.Preferences.PriceMax),
		pq.Array(patient.Preferences.PreferredSpecialties),
	)

	return err
}

// GetByID retrieves a patient by ID.
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	query := `
		SELECT id, name, phone, email, max_distance_km, price_min, price_max, preferred_specialties
		FROM patients WHERE id = $1
	`

	var patient domain.Patient
	var maxDistance, priceMin, priceMax sql.NullFloat64

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&patient.ID,
		&patient.Name,
		&patient.Phone,
		&patient.Email,
		&maxDistance,
		&priceMin,
		&priceMax,
		pq.Array(&patient.Preferences.PreferredSpecialties),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	patient.Preferences.MaxDistanceKm = floatPtr(maxDistance)
	patient.Preferences.PriceMin = floatPtr(priceMin)
	patient.Preferences.PriceMax = floatPtr(priceMax)

	return &patient, nil
}

// UpdatePreferences replaces the patient's matching preferences.
func (r *PatientRepository) UpdatePreferences(ctx context.Context, id string, prefs domain.MatchPreferences) error {
	query := `
		UPDATE patients
		SET max_distance_km = $1, price_min = $2, price_max = $3, preferred_specialties = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		nullFloat(prefs.MaxDistanceKm),
		nullFloat(prefs.PriceMin),
		nullFloat(prefs.PriceMax),
		pq.Array(prefs.PreferredSpecialties),
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
