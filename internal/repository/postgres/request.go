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

// RequestRepository is a PostgreSQL implementation of repository.RequestRepository.
type RequestRepository struct {
	q Querier
}

// NewRequestRepository creates a new PostgreSQL request repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{q: db}
}

// NewRequestRepositoryWithTx creates a request repository using a transaction.
func NewRequestRepositoryWithTx(tx *sql.Tx) *RequestRepository {
	return &RequestRepository{q: tx}
}

const requestColumns = `id, patient_id, patient_name, service_type, scheduled_at, duration_hours, address, lat, lng, special_requirements, urgent, status, candidates, pending_nurse_ids, declined_nurse_ids, selected_nurse_id, offer_sent_at, response_deadline, platform_fee, fee_paid, nurse_payout, payout_paid, review, created_at, updated_at, cancelled_at, cancel_note`

// Create persists a new service request with its candidate snapshot.
func (r *RequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	args, err := requestArgs(req)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves a service request by ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`

	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListByPatient retrieves a patient's requests, newest first.
func (r *RequestRepository) ListByPatient(ctx context.Context, patientID string) ([]*domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE patient_id = $1 ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Update updates an existing request unconditionally.
func (r *RequestRepository) Update(ctx context.Context, req *domain.ServiceRequest) error {
	result, err := r.exec(ctx, req, updateQuery(""))
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateIfStatus writes the request only while its stored status still
// equals expected. The WHERE clause on status is what makes concurrent
// offer responses safe: the first writer wins and later writers observe
// ErrStaleState.
func (r *RequestRepository) UpdateIfStatus(ctx context.Context, req *domain.ServiceRequest, expected domain.RequestStatus) error {
	result, err := r.exec(ctx, req, updateQuery(` AND status = $28`), expected)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	// Distinguish a lost race from a missing row.
	var one int
	err = r.q.QueryRowContext(ctx, `SELECT 1 FROM service_requests WHERE id = $1`, req.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrStaleState
}

func updateQuery(extraCond string) string {
	// patient_id and created_at are immutable; they are rewritten with
	// their existing values so both statements share one arg builder.
	return `
		UPDATE service_requests
		SET patient_id = $2, patient_name = $3, service_type = $4, scheduled_at = $5,
		    duration_hours = $6, address = $7, lat = $8, lng = $9,
		    special_requirements = $10, urgent = $11, status = $12, candidates = $13,
		    pending_nurse_ids = $14, declined_nurse_ids = $15, selected_nurse_id = $16,
		    offer_sent_at = $17, response_deadline = $18, platform_fee = $19,
		    fee_paid = $20, nurse_payout = $21, payout_paid = $22, review = $23,
		    created_at = $24, updated_at = $25, cancelled_at = $26, cancel_note = $27
		WHERE id = $1` + extraCond
}

func (r *RequestRepository) exec(ctx context.Context, req *domain.ServiceRequest, query string, extra ...any) (sql.Result, error) {
	args, err := requestArgs(req)
	if err != nil {
		return nil, err
	}
	args = append(args, extra...)
	return r.q.ExecContext(ctx, query, args...)
}

func requestArgs(req *domain.ServiceRequest) ([]any, error) {
	candidates, err := json.Marshal(req.Matching.Candidates)
	if err != nil {
		return nil, err
	}

	var review []byte
	if req.Review != nil {
		review, err = json.Marshal(req.Review)
		if err != nil {
			return nil, err
		}
	}

	var lat, lng sql.NullFloat64
	if req.Details.Location != nil {
		lat = sql.NullFloat64{Float64: req.Details.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: req.Details.Location.Lng, Valid: true}
	}

	var selectedNurseID, cancelNote sql.NullString
	if req.Matching.SelectedNurseID != "" {
		selectedNurseID = sql.NullString{String: req.Matching.SelectedNurseID, Valid: true}
	}
	if req.CancelNote != "" {
		cancelNote = sql.NullString{String: req.CancelNote, Valid: true}
	}

	var offerSentAt, responseDeadline, cancelledAt sql.NullTime
	if !req.Matching.OfferSentAt.IsZero() {
		offerSentAt = sql.NullTime{Time: req.Matching.OfferSentAt, Valid: true}
	}
	if !req.Matching.ResponseDeadline.IsZero() {
		responseDeadline = sql.NullTime{Time: req.Matching.ResponseDeadline, Valid: true}
	}
	if !req.CancelledAt.IsZero() {
		cancelledAt = sql.NullTime{Time: req.CancelledAt, Valid: true}
	}

	return []any{
		req.ID,                // $1
		req.PatientID,         // $2
		req.PatientName,       // $3
		req.Details.ServiceType,
		req.Details.ScheduledAt,
		req.Details.DurationHours,
		req.Details.Address,
		lat,
		lng,
		req.Details.SpecialRequirements,
		req.Details.Urgent,
		req.Status,
		candidates,
		pq.Array(req.Matching.PendingNurseIDs),
		pq.Array(req.Matching.DeclinedNurseIDs),
		selectedNurseID,
		offerSentAt,
		responseDeadline,
		req.Payment.PlatformFee,
		req.Payment.FeePaid,
		req.Payment.NursePayout,
		req.Payment.PayoutPaid,
		review,
		req.CreatedAt,
		req.UpdatedAt,
		cancelledAt,
		cancelNote,
	}, nil
}

func scanRequest(row rowScanner) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var lat, lng sql.NullFloat64
	var selectedNurseID, cancelNote sql.NullString
	var offerSentAt, responseDeadline, cancelledAt sql.NullTime
	var candidates, review []byte

	err := row.Scan(
		&req.ID,
		&req.PatientID,
		&req.PatientName,
		&req.Details.ServiceType,
		&req.Details.ScheduledAt,
		&req.Details.DurationHours,
		&req.Details.Address,
		&lat,
		&lng,
		&req.Details.SpecialRequirements,
		&req.Details.Urgent,
		&req.Status,
		&candidates,
		pq.Array(&req.Matching.PendingNurseIDs),
		pq.Array(&req.Matching.DeclinedNurseIDs),
		&selectedNurseID,
		&offerSentAt,
		&responseDeadline,
		&req.Payment.PlatformFee,
		&req.Payment.FeePaid,
		&req.Payment.NursePayout,
		&req.Payment.PayoutPaid,
		&review,
		&req.CreatedAt,
		&req.UpdatedAt,
		&cancelledAt,
		&cancelNote,
	)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &req.Matching.Candidates); err != nil {
			return nil, err
		}
	}
	if len(review) > 0 {
		req.Review = &domain.Review{}
		if err := json.Unmarshal(review, req.Review); err != nil {
			return nil, err
		}
	}
	if lat.Valid && lng.Valid {
		req.Details.Location = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if selectedNurseID.Valid {
		req.Matching.SelectedNurseID = selectedNurseID.String
	}
	if cancelNote.Valid {
		req.CancelNote = cancelNote.String
	}
	if offerSentAt.Valid {
		req.Matching.OfferSentAt = offerSentAt.Time
	}
	if responseDeadline.Valid {
		req.Matching.ResponseDeadline = responseDeadline.Time
	}
	if cancelledAt.Valid {
		req.CancelledAt = cancelledAt.Time
	}

	return &req, nil
}
