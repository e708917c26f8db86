package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"homecare/internal/domain"
	"homecare/internal/geo"
	"homecare/internal/observability"
	"homecare/internal/redis"
	"homecare/internal/repository"
)

const matchLockTTL = 30 * time.Second

// MatchingServiceInterface defines the matching contract.
// This interface allows for testing with mock implementations.
type MatchingServiceInterface interface {
	FindCandidates(ctx context.Context, details domain.ServiceDetails, prefs domain.MatchPreferences, exclude []string) ([]domain.Candidate, error)
}

// Ensure MatchingService implements MatchingServiceInterface.
var _ MatchingServiceInterface = (*MatchingService)(nil)

// OfferPolicy holds the offer-lifecycle knobs.
type OfferPolicy struct {
	// Fanout is how many nurses are offered at once: 1 = best-match,
	// >1 = multi-offer.
	Fanout int
	// Window is how long a nurse has to respond before the offer is
	// treated as expired.
	Window time.Duration
	// PlatformFee is the fixed fee charged per request.
	PlatformFee float64
}

// RequestService owns the service-request lifecycle. Every status
// mutation goes through it; callers never patch status fields directly.
type RequestService struct {
	requestRepo repository.RequestRepository
	patientRepo repository.PatientRepository
	nurseRepo   repository.NurseRepository
	matching    MatchingServiceInterface
	notifier    NotifierInterface
	lockStore   redis.LockStoreInterface
	policy      OfferPolicy

	// Clock is injectable for deadline tests; defaults to time.Now.
	Clock func() time.Time
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	requestRepo repository.RequestRepository,
	patientRepo repository.PatientRepository,
	nurseRepo repository.NurseRepository,
	matching MatchingServiceInterface,
	notifier NotifierInterface,
	lockStore redis.LockStoreInterface,
	policy OfferPolicy,
) *RequestService {
	if policy.Fanout <= 0 {
		policy.Fanout = 1
	}
	if policy.Window <= 0 {
		policy.Window = 15 * time.Minute
	}
	return &RequestService{
		requestRepo: requestRepo,
		patientRepo: patientRepo,
		nurseRepo:   nurseRepo,
		matching:    matching,
		notifier:    notifier,
		lockStore:   lockStore,
		policy:      policy,
		Clock:       time.Now,
	}
}

// CreateRequestInput contains the parameters for creating a request.
type CreateRequestInput struct {
	PatientID           string
	ServiceType         string
	ScheduledAt         time.Time
	DurationHours       float64
	Address             string
	Location            *domain.Location
	SpecialRequirements string
	Urgent              bool
}

// CreateRequestResult contains the outcome of creating a request.
type CreateRequestResult struct {
	Request    *domain.ServiceRequest
	Candidates []domain.Candidate
	// Offered is false when no eligible nurse was found; the request
	// stays in finding-nurses and the caller presents a no-nurses state.
	Offered bool
	// Warnings carries non-fatal notification failures.
	Warnings []string
}

// CreateRequest validates the input, runs a matching pass, persists the
// request with its candidate snapshot and dispatches offers to the
// top-ranked nurses.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*CreateRequestResult, error) {
	if err := s.validateCreateInput(input); err != nil {
		return nil, err
	}

	patient, err := s.patientRepo.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.matching.FindCandidates(ctx, domain.ServiceDetails{
		ServiceType:   input.ServiceType,
		ScheduledAt:   input.ScheduledAt,
		DurationHours: input.DurationHours,
		Location:      input.Location,
	}, patient.Preferences, nil)
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	req := &domain.ServiceRequest{
		ID:          uuid.New().String(),
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Details: domain.ServiceDetails{
			ServiceType:         input.ServiceType,
			ScheduledAt:         input.ScheduledAt,
			DurationHours:       input.DurationHours,
			Address:             input.Address,
			Location:            input.Location,
			SpecialRequirements: input.SpecialRequirements,
			Urgent:              input.Urgent,
		},
		Status:    domain.RequestStatusCreating,
		Matching:  domain.Matching{Candidates: candidates},
		Payment:   domain.Payment{PlatformFee: s.policy.PlatformFee},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	// The snapshot is persisted; the request is now searchable.
	if err := s.transition(ctx, req, domain.RequestStatusFindingNurses, domain.RequestStatusCreating); err != nil {
		return nil, err
	}

	result := &CreateRequestResult{Request: req, Candidates: candidates}
	if len(candidates) == 0 {
		log.Info().Str("request_id", req.ID).Msg("no eligible nurses for request")
		return result, nil
	}

	top := SelectTop(candidates, s.policy.Fanout)
	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.NurseID
	}

	offered, warnings, err := s.Offer(ctx, req.ID, ids)
	if err != nil {
		return nil, err
	}
	result.Request = offered
	result.Offered = true
	result.Warnings = warnings
	return result, nil
}

// Offer dispatches offers to the given nurses: it adds them to the
// pending set, stamps the offer time and response deadline, records the
// first nurse's estimated payout and notifies every nurse. Notification
// failures never roll back the offer; they come back as warnings.
func (s *RequestService) Offer(ctx context.Context, requestID string, nurseIDs []string) (*domain.ServiceRequest, []string, error) {
	if requestID == "" {
		return nil, nil, ErrInvalidRequestID
	}
	if len(nurseIDs) == 0 {
		return nil, nil, ErrInvalidNurseID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	if req.Status != domain.RequestStatusFindingNurses && req.Status != domain.RequestStatusPendingResponse {
		return nil, nil, ErrRequestNotOfferable
	}

	// Offers may only target nurses from the creation-time snapshot.
	for _, id := range nurseIDs {
		if req.Matching.Candidate(id) == nil {
			return nil, nil, ErrNurseNotCandidate
		}
	}

	expected := req.Status
	now := s.Clock()
	for _, id := range nurseIDs {
		if !req.Matching.IsPending(id) {
			req.Matching.PendingNurseIDs = append(req.Matching.PendingNurseIDs, id)
		}
	}
	req.Matching.OfferSentAt = now
	req.Matching.ResponseDeadline = now.Add(s.policy.Window)
	req.Payment.NursePayout = req.Matching.Candidate(nurseIDs[0]).EstimatedCost
	req.Status = domain.RequestStatusPendingResponse
	req.UpdatedAt = now

	if err := s.requestRepo.UpdateIfStatus(ctx, req, expected); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, nil, ErrRequestNotOfferable
		}
		return nil, nil, err
	}

	var warnings []string
	for _, id := range nurseIDs {
		observability.OffersSentTotal.Inc()
		cost := req.Matching.Candidate(id).EstimatedCost
		if res := s.notifier.NotifyNewOffer(ctx, id, req, cost); !res.Success {
			warnings = append(warnings, "notify nurse "+id+": "+res.Message)
		}
	}

	log.Info().
		Str("request_id", req.ID).
		Strs("nurse_ids", nurseIDs).
		Time("deadline", req.Matching.ResponseDeadline).
		Msg("offers dispatched")

	return req, warnings, nil
}

// Respond applies a nurse's accept/decline decision.
//
// Accept wins by conditional update: it only commits while the request
// is still pending-response, so the first acceptance wins and later ones
// observe ErrOfferNotAvailable. Decline removes the nurse from the
// pending set and declines the request when the set empties. Both
// directions are idempotent: repeating the same response does not
// double-apply side effects.
func (s *RequestService) Respond(ctx context.Context, requestID, nurseID string, accepted bool) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}
	if nurseID == "" {
		return nil, ErrInvalidNurseID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if accepted {
		return s.accept(ctx, req, nurseID)
	}
	return s.decline(ctx, req, nurseID)
}

func (s *RequestService) accept(ctx context.Context, req *domain.ServiceRequest, nurseID string) (*domain.ServiceRequest, error) {
	// Repeated accept by the winner is a no-op, not an error.
	if req.Status == domain.RequestStatusConfirmed && req.Matching.SelectedNurseID == nurseID {
		return req, nil
	}

	if req.Status != domain.RequestStatusPendingResponse {
		observability.OfferResponsesTotal.WithLabelValues("stale").Inc()
		return nil, ErrOfferNotAvailable
	}
	if !req.Matching.IsPending(nurseID) {
		return nil, ErrNurseNotOffered
	}

	candidate := req.Matching.Candidate(nurseID)

	req.Status = domain.RequestStatusConfirmed
	req.Matching.SelectedNurseID = nurseID
	req.Matching.PendingNurseIDs = nil
	if candidate != nil {
		req.Payment.NursePayout = candidate.EstimatedCost
	}
	req.UpdatedAt = s.Clock()

	// First acceptance wins; a lost race surfaces as a stale offer.
	if err := s.requestRepo.UpdateIfStatus(ctx, req, domain.RequestStatusPendingResponse); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			observability.OfferResponsesTotal.WithLabelValues("stale").Inc()
			return nil, ErrOfferNotAvailable
		}
		return nil, err
	}

	observability.OfferResponsesTotal.WithLabelValues("accepted").Inc()
	nurseName := nurseID
	if candidate != nil {
		nurseName = candidate.Name
	}
	s.notifier.NotifyRequestConfirmed(ctx, req, nurseName)

	log.Info().Str("request_id", req.ID).Str("nurse_id", nurseID).Msg("offer accepted")
	return req, nil
}

func (s *RequestService) decline(ctx context.Context, req *domain.ServiceRequest, nurseID string) (*domain.ServiceRequest, error) {
	// Declining an offer that is already gone is a no-op.
	if req.Status != domain.RequestStatusPendingResponse || !req.Matching.IsPending(nurseID) {
		return req, nil
	}

	req.Matching.RemovePending(nurseID)
	if !req.Matching.HasDeclined(nurseID) {
		req.Matching.DeclinedNurseIDs = append(req.Matching.DeclinedNurseIDs, nurseID)
	}
	req.UpdatedAt = s.Clock()

	declinedAll := len(req.Matching.PendingNurseIDs) == 0
	if declinedAll {
		req.Status = domain.RequestStatusDeclined
	}

	if err := s.requestRepo.UpdateIfStatus(ctx, req, domain.RequestStatusPendingResponse); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			// Someone accepted or the request expired meanwhile; the
			// decline no longer matters.
			return s.requestRepo.GetByID(ctx, req.ID)
		}
		return nil, err
	}

	observability.OfferResponsesTotal.WithLabelValues("declined").Inc()
	if declinedAll {
		s.notifier.NotifyRequestDeclined(ctx, req, "all offered nurses declined")
	}

	log.Info().Str("request_id", req.ID).Str("nurse_id", nurseID).Bool("declined_all", declinedAll).Msg("offer declined")
	return req, nil
}

// GetRequest returns a request, applying opportunistic deadline expiry.
// Expiry is client-driven: it happens when the record is observed, there
// is no background timer guaranteeing it.
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	return s.ExpireIfOverdue(ctx, req)
}

// ExpireIfOverdue transitions a pending-response request past its
// response deadline to declined. Safe to call on any request; requests
// not overdue come back unchanged.
func (s *RequestService) ExpireIfOverdue(ctx context.Context, req *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	if req.Status != domain.RequestStatusPendingResponse {
		return req, nil
	}
	if req.Matching.ResponseDeadline.IsZero() || !s.Clock().After(req.Matching.ResponseDeadline) {
		return req, nil
	}

	req.Status = domain.RequestStatusDeclined
	req.Matching.PendingNurseIDs = nil
	req.UpdatedAt = s.Clock()

	if err := s.requestRepo.UpdateIfStatus(ctx, req, domain.RequestStatusPendingResponse); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			// A response landed between our read and write.
			return s.requestRepo.GetByID(ctx, req.ID)
		}
		return nil, err
	}

	observability.OffersExpiredTotal.Inc()
	s.notifier.NotifyRequestDeclined(ctx, req, "offer window elapsed")
	log.Info().Str("request_id", req.ID).Msg("request expired past response deadline")
	return req, nil
}

// ListPatientRequests returns a patient's requests, newest first.
func (s *RequestService) ListPatientRequests(ctx context.Context, patientID string) ([]*domain.ServiceRequest, error) {
	if patientID == "" {
		return nil, ErrInvalidPatientID
	}
	return s.requestRepo.ListByPatient(ctx, patientID)
}

// Cancel cancels a request from any non-terminal state. An in-flight
// offer notification may still reach a nurse afterwards; responses to a
// cancelled request surface as stale offers.
func (s *RequestService) Cancel(ctx context.Context, requestID, note string) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status == domain.RequestStatusCancelled {
		return nil, ErrRequestAlreadyCancelled
	}
	if !domain.CanTransition(req.Status, domain.RequestStatusCancelled) {
		return nil, ErrRequestCannotBeCancelled
	}

	expected := req.Status
	req.Status = domain.RequestStatusCancelled
	req.Matching.PendingNurseIDs = nil
	req.CancelledAt = s.Clock()
	req.CancelNote = note
	req.UpdatedAt = req.CancelledAt

	if err := s.requestRepo.UpdateIfStatus(ctx, req, expected); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrRequestCannotBeCancelled
		}
		return nil, err
	}

	log.Info().Str("request_id", req.ID).Msg("request cancelled")
	return req, nil
}

// StartVisit moves a confirmed request to in-progress when the selected
// nurse sets out.
func (s *RequestService) StartVisit(ctx context.Context, requestID, nurseID string) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}
	if nurseID == "" {
		return nil, ErrInvalidNurseID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Matching.SelectedNurseID != nurseID {
		return nil, ErrNurseNotAssigned
	}
	if err := s.transition(ctx, req, domain.RequestStatusInProgress, domain.RequestStatusConfirmed); err != nil {
		return nil, err
	}

	nurseName := nurseID
	if c := req.Matching.Candidate(nurseID); c != nil {
		nurseName = c.Name
	}
	s.notifier.NotifyEnRoute(ctx, req, nurseName)
	return req, nil
}

// CompleteVisit marks the visit delivered.
func (s *RequestService) CompleteVisit(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, req, domain.RequestStatusCompleted, req.Status); err != nil {
		return nil, err
	}

	s.notifier.NotifyVisitCompleted(ctx, req)
	return req, nil
}

// AddReview attaches a post-completion review.
func (s *RequestService) AddReview(ctx context.Context, requestID string, rating int, comment string) (*domain.ServiceRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != domain.RequestStatusCompleted {
		return nil, ErrRequestNotCompleted
	}
	if req.Review != nil {
		return nil, ErrAlreadyReviewed
	}

	req.Review = &domain.Review{Rating: rating, Comment: comment, CreatedAt: s.Clock()}
	req.UpdatedAt = req.Review.CreatedAt

	if err := s.requestRepo.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Rematch runs a fresh matching pass for a declined request. History is
// never mutated: the original request keeps its snapshot and a new
// request is created, excluding nurses who already declined. Fallback
// after a decline is deliberately caller-driven, there is no automatic
// cascade to the next candidate.
func (s *RequestService) Rematch(ctx context.Context, requestID string) (*CreateRequestResult, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	prev, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if prev.Status != domain.RequestStatusDeclined {
		return nil, ErrRequestNotRematchable
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireRequestLock(ctx, prev.ID, matchLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrRequestBusy
		}
		defer func() {
			_ = s.lockStore.ReleaseRequestLock(ctx, prev.ID)
		}()
	}

	patient, err := s.patientRepo.GetByID(ctx, prev.PatientID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.matching.FindCandidates(ctx, prev.Details, patient.Preferences, prev.Matching.DeclinedNurseIDs)
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	req := &domain.ServiceRequest{
		ID:          uuid.New().String(),
		PatientID:   prev.PatientID,
		PatientName: prev.PatientName,
		Details:     prev.Details,
		Status:      domain.RequestStatusCreating,
		Matching: domain.Matching{
			Candidates:       candidates,
			DeclinedNurseIDs: append([]string(nil), prev.Matching.DeclinedNurseIDs...),
		},
		Payment:   domain.Payment{PlatformFee: s.policy.PlatformFee},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, req, domain.RequestStatusFindingNurses, domain.RequestStatusCreating); err != nil {
		return nil, err
	}

	result := &CreateRequestResult{Request: req, Candidates: candidates}
	if len(candidates) == 0 {
		return result, nil
	}

	top := SelectTop(candidates, s.policy.Fanout)
	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.NurseID
	}
	offered, warnings, err := s.Offer(ctx, req.ID, ids)
	if err != nil {
		return nil, err
	}
	result.Request = offered
	result.Offered = true
	result.Warnings = warnings
	return result, nil
}

// transition applies a legal status edge via conditional update.
func (s *RequestService) transition(ctx context.Context, req *domain.ServiceRequest, to, expected domain.RequestStatus) error {
	if !domain.CanTransition(req.Status, to) {
		return ErrIllegalTransition
	}

	req.Status = to
	req.UpdatedAt = s.Clock()

	if err := s.requestRepo.UpdateIfStatus(ctx, req, expected); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return ErrIllegalTransition
		}
		return err
	}
	return nil
}

func (s *RequestService) validateCreateInput(input CreateRequestInput) error {
	if input.PatientID == "" {
		return ErrInvalidPatientID
	}
	if input.ServiceType == "" {
		return ErrInvalidServiceType
	}
	if input.Location == nil || !geo.ValidLatitude(input.Location.Lat) || !geo.ValidLongitude(input.Location.Lng) {
		return ErrMissingLocation
	}
	if input.DurationHours < 1 {
		return ErrInvalidDuration
	}
	if input.ScheduledAt.IsZero() || input.ScheduledAt.Before(s.Clock()) {
		return ErrInvalidSchedule
	}
	return nil
}
