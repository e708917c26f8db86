package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"homecare/internal/domain"
	"homecare/internal/repository"
)

// NurseRepository is a PostgreSQL implementation of repository.NurseRepository.
type NurseRepository struct {
	q Querier
}

// NewNurseRepository creates a new PostgreSQL nurse repository.
func NewNurseRepository(db *sql.DB) *NurseRepository {
	return &NurseRepository{q: db}
}

const nurseColumns = `id, name, phone, avatar_url, status, specialties, hourly_rate, specialty_rates, rating, avg_response_minutes, completion_rate, total_bookings, service_radius_km, lat, lng`

// Create adds a new nurse.
func (r *NurseRepository) Create(ctx context.Context, nurse *domain.Nurse) error {
	query := `
		INSERT INTO nurses (` + nurseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	rates, err := json.Marshal(nurse.SpecialtyRates)
	if err != nil {
		return err
	}

	var lat, lng sql.NullFloat64
	if nurse.Location != nil {
		lat = sql.NullFloat64{Float64: nurse.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: nurse.Location.Lng, Valid: true}
	}

	_, err = r.q.ExecContext(ctx, query,
		nurse.ID,
		nurse.Name,
		nurse.Phone,
		nurse.AvatarURL,
		nurse.Status,
		pq.Array(nurse.Specialties),
		nurse.HourlyRate,
		rates,
		nurse.Stats.Rating,
		nurse.Stats.AvgResponseMinutes,
		nurse.Stats.CompletionRate,
		nurse.Stats.TotalBookings,
		nurse.ServiceRadiusKm,
		lat,
		lng,
	)

	return err
}

// GetByID retrieves a nurse by ID.
func (r *NurseRepository) GetByID(ctx context.Context, id string) (*domain.Nurse, error) {
	query := `SELECT ` + nurseColumns + ` FROM nurses WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a nurse by phone number.
func (r *NurseRepository) GetByPhone(ctx context.Context, phone string) (*domain.Nurse, error) {
	query := `SELECT ` + nurseColumns + ` FROM nurses WHERE phone = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, phone))
}

// GetByIDs retrieves the nurses with the given IDs. Missing IDs are skipped.
func (r *NurseRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Nurse, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + nurseColumns + ` FROM nurses WHERE id = ANY($1)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// GetAll retrieves all nurses.
func (r *NurseRepository) GetAll(ctx context.Context) ([]*domain.Nurse, error) {
	query := `SELECT ` + nurseColumns + ` FROM nurses ORDER BY name LIMIT 500`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// UpdateStatus updates the status of a nurse.
func (r *NurseRepository) UpdateStatus(ctx context.Context, id string, status domain.NurseStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE nurses SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateLocation stores the nurse's last known position.
func (r *NurseRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	result, err := r.q.ExecContext(ctx, `UPDATE nurses SET lat = $1, lng = $2 WHERE id = $3`, loc.Lat, loc.Lng, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *NurseRepository) scan(row rowScanner) (*domain.Nurse, error) {
	var nurse domain.Nurse
	var rates []byte
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&nurse.ID,
		&nurse.Name,
		&nurse.Phone,
		&nurse.AvatarURL,
		&nurse.Status,
		pq.Array(&nurse.Specialties),
		&nurse.HourlyRate,
		&rates,
		&nurse.Stats.Rating,
		&nurse.Stats.AvgResponseMinutes,
		&nurse.Stats.CompletionRate,
		&nurse.Stats.TotalBookings,
		&nurse.ServiceRadiusKm,
		&lat,
		&lng,
	)
	if err != nil {
		return nil, err
	}

	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &nurse.SpecialtyRates); err != nil {
			return nil, err
		}
	}
	if lat.Valid && lng.Valid {
		nurse.Location = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}

	return &nurse, nil
}

func (r *NurseRepository) scanOne(row *sql.Row) (*domain.Nurse, error) {
	nurse, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return nurse, nil
}

func (r *NurseRepository) scanAll(rows *sql.Rows) ([]*domain.Nurse, error) {
	var nurses []*domain.Nurse
	for rows.Next() {
		nurse, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		nurses = append(nurses, nurse)
	}
	return nurses, rows.Err()
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
