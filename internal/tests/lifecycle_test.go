package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"homecare/internal/domain"
	"homecare/internal/service"
)

// ──────────────────────────────────────────────
// REQUEST LIFECYCLE AND OFFER RESPONSES
// ──────────────────────────────────────────────

func newLifecycleFixture() (*service.RequestService, *MockRequestRepository, *MockNotifier) {
	requestRepo := NewMockRequestRepository()
	patientRepo := NewMockPatientRepository()
	nurseRepo := NewMockNurseRepository()
	notifier := NewMockNotifier()
	lockStore := NewMockLockStore()

	patientRepo.AddPatient(&domain.Patient{ID: "patient-1", Name: "Pat"})

	matching := service.NewMatchingService(nil, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	svc := service.NewRequestService(requestRepo, patientRepo, nurseRepo, matching, notifier, lockStore, service.OfferPolicy{
		Fanout:      1,
		Window:      15 * time.Minute,
		PlatformFee: 5,
	})
	return svc, requestRepo, notifier
}

// pendingRequest builds a request holding open offers for the given nurses.
func pendingRequest(id string, nurseIDs ...string) *domain.ServiceRequest {
	candidates := make([]domain.Candidate, 0, len(nurseIDs))
	for i, nid := range nurseIDs {
		candidates = append(candidates, domain.Candidate{
			NurseID:       nid,
			Name:          "Nurse " + nid,
			Score:         90 - i,
			EstimatedCost: 60,
		})
	}
	now := time.Now()
	return &domain.ServiceRequest{
		ID:        id,
		PatientID: "patient-1",
		Details: domain.ServiceDetails{
			ServiceType:   "elderly-care",
			ScheduledAt:   now.Add(24 * time.Hour),
			DurationHours: 2,
		},
		Status: domain.RequestStatusPendingResponse,
		Matching: domain.Matching{
			Candidates:       candidates,
			PendingNurseIDs:  append([]string(nil), nurseIDs...),
			OfferSentAt:      now,
			ResponseDeadline: now.Add(15 * time.Minute),
		},
		Payment:   domain.Payment{PlatformFee: 5},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStatusTransitionLegality(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to domain.RequestStatus
		legal    bool
	}{
		{domain.RequestStatusCreating, domain.RequestStatusFindingNurses, true},
		{domain.RequestStatusFindingNurses, domain.RequestStatusPendingResponse, true},
		{domain.RequestStatusPendingResponse, domain.RequestStatusConfirmed, true},
		{domain.RequestStatusPendingResponse, domain.RequestStatusDeclined, true},
		{domain.RequestStatusConfirmed, domain.RequestStatusInProgress, true},
		{domain.RequestStatusConfirmed, domain.RequestStatusCompleted, true},
		{domain.RequestStatusInProgress, domain.RequestStatusCompleted, true},
		// Cancellation from any non-terminal state.
		{domain.RequestStatusCreating, domain.RequestStatusCancelled, true},
		{domain.RequestStatusFindingNurses, domain.RequestStatusCancelled, true},
		{domain.RequestStatusPendingResponse, domain.RequestStatusCancelled, true},
		{domain.RequestStatusConfirmed, domain.RequestStatusCancelled, true},
		{domain.RequestStatusInProgress, domain.RequestStatusCancelled, true},
		// Illegal edges.
		{domain.RequestStatusCreating, domain.RequestStatusConfirmed, false},
		{domain.RequestStatusFindingNurses, domain.RequestStatusConfirmed, false},
		{domain.RequestStatusPendingResponse, domain.RequestStatusInProgress, false},
		{domain.RequestStatusConfirmed, domain.RequestStatusPendingResponse, false},
		{domain.RequestStatusDeclined, domain.RequestStatusPendingResponse, false},
		// Terminal states stay terminal.
		{domain.RequestStatusCompleted, domain.RequestStatusCancelled, false},
		{domain.RequestStatusCancelled, domain.RequestStatusCancelled, false},
		{domain.RequestStatusDeclined, domain.RequestStatusCancelled, false},
		{domain.RequestStatusCompleted, domain.RequestStatusInProgress, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.legal {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.legal)
		}
	}
}

func TestRespond_AcceptConfirmsRequest(t *testing.T) {
	t.Parallel()

	svc, requestRepo, notifier := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	req, err := svc.Respond(context.Background(), "req-1", "nurse-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != domain.RequestStatusConfirmed {
		t.Errorf("status = %s, want confirmed", req.Status)
	}
	if req.Matching.SelectedNurseID != "nurse-1" {
		t.Errorf("selected nurse = %q, want nurse-1", req.Matching.SelectedNurseID)
	}
	if len(req.Matching.PendingNurseIDs) != 0 {
		t.Error("pending set should be cleared on accept")
	}
	if req.Payment.NursePayout != 60 {
		t.Errorf("payout = %v, want candidate estimated cost 60", req.Payment.NursePayout)
	}
	if notifier.CountKind(service.NotificationRequestConfirmed) != 1 {
		t.Error("patient should be notified of confirmation")
	}
}

func TestRespond_AcceptByNonOfferedNurse(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	_, err := svc.Respond(context.Background(), "req-1", "nurse-2", true)
	if !errors.Is(err, service.ErrNurseNotOffered) {
		t.Fatalf("err = %v, want ErrNurseNotOffered", err)
	}
}

func TestRespond_SecondAcceptLosesRace(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1", "nurse-2"))

	if _, err := svc.Respond(context.Background(), "req-1", "nurse-1", true); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	_, err := svc.Respond(context.Background(), "req-1", "nurse-2", true)
	if !errors.Is(err, service.ErrOfferNotAvailable) {
		t.Fatalf("err = %v, want ErrOfferNotAvailable", err)
	}

	stored := requestRepo.GetRequest("req-1")
	if stored.Matching.SelectedNurseID != "nurse-1" {
		t.Errorf("selected nurse = %q, first acceptance must win", stored.Matching.SelectedNurseID)
	}
}

func TestRespond_ConcurrentAcceptsSingleWinner(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	nurseIDs := []string{"nurse-1", "nurse-2", "nurse-3", "nurse-4"}
	requestRepo.AddRequest(pendingRequest("req-1", nurseIDs...))

	var wg sync.WaitGroup
	results := make([]error, len(nurseIDs))
	for i, nid := range nurseIDs {
		wg.Add(1)
		go func(i int, nid string) {
			defer wg.Done()
			_, results[i] = svc.Respond(context.Background(), "req-1", nid, true)
		}(i, nid)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, service.ErrOfferNotAvailable) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	stored := requestRepo.GetRequest("req-1")
	if stored.Status != domain.RequestStatusConfirmed {
		t.Errorf("status = %s, want confirmed", stored.Status)
	}
	if stored.Matching.SelectedNurseID == "" {
		t.Error("a winner must be recorded")
	}
}

func TestRespond_RepeatedAcceptByWinnerIsNoOp(t *testing.T) {
	t.Parallel()

	svc, requestRepo, notifier := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	if _, err := svc.Respond(context.Background(), "req-1", "nurse-1", true); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	req, err := svc.Respond(context.Background(), "req-1", "nurse-1", true)
	if err != nil {
		t.Fatalf("repeated accept by winner should be a no-op, got %v", err)
	}
	if req.Status != domain.RequestStatusConfirmed {
		t.Errorf("status = %s, want confirmed", req.Status)
	}
	if notifier.CountKind(service.NotificationRequestConfirmed) != 1 {
		t.Error("confirmation must not be re-sent on repeated accept")
	}
}

func TestRespond_DeclineRemovesFromPending(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1", "nurse-2"))

	req, err := svc.Respond(context.Background(), "req-1", "nurse-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One offer still open: the request stays pending.
	if req.Status != domain.RequestStatusPendingResponse {
		t.Errorf("status = %s, want pending-response", req.Status)
	}
	if req.Matching.IsPending("nurse-1") {
		t.Error("declined nurse must leave the pending set")
	}
	if !req.Matching.IsPending("nurse-2") {
		t.Error("other nurse must keep their open offer")
	}
	if !req.Matching.HasDeclined("nurse-1") {
		t.Error("decline must be recorded")
	}
}

func TestRespond_LastDeclineDeclinesRequest(t *testing.T) {
	t.Parallel()

	svc, requestRepo, notifier := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	req, err := svc.Respond(context.Background(), "req-1", "nurse-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != domain.RequestStatusDeclined {
		t.Errorf("status = %s, want declined", req.Status)
	}
	if notifier.CountKind(service.NotificationRequestDeclined) != 1 {
		t.Error("patient should be notified when every offer is declined")
	}

	// The candidate snapshot survives the decline.
	stored := requestRepo.GetRequest("req-1")
	if len(stored.Matching.Candidates) != 1 {
		t.Error("candidate snapshot must not be mutated by decline")
	}
}

func TestRespond_RepeatedDeclineIsNoOp(t *testing.T) {
	t.Parallel()

	svc, requestRepo, notifier := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	if _, err := svc.Respond(context.Background(), "req-1", "nurse-1", false); err != nil {
		t.Fatalf("first decline failed: %v", err)
	}
	if _, err := svc.Respond(context.Background(), "req-1", "nurse-1", false); err != nil {
		t.Fatalf("repeated decline should be a no-op, got %v", err)
	}
	if notifier.CountKind(service.NotificationRequestDeclined) != 1 {
		t.Error("decline notification must not be re-sent")
	}
}

func TestRespond_AcceptAfterDeadlineExpiry(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	// Move the clock past the response deadline, then observe the request.
	svc.Clock = func() time.Time { return time.Now().Add(20 * time.Minute) }
	req, err := svc.GetRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != domain.RequestStatusDeclined {
		t.Fatalf("status = %s, want declined after deadline", req.Status)
	}

	// A late accept finds the offer gone.
	_, err = svc.Respond(context.Background(), "req-1", "nurse-1", true)
	if !errors.Is(err, service.ErrOfferNotAvailable) {
		t.Fatalf("err = %v, want ErrOfferNotAvailable", err)
	}
}

func TestGetRequest_NoExpiryBeforeDeadline(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	req, err := svc.GetRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != domain.RequestStatusPendingResponse {
		t.Errorf("status = %s, request inside its window must stay pending", req.Status)
	}
}

func TestCancel_FromPendingResponse(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	req, err := svc.Cancel(context.Background(), "req-1", "changed my mind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != domain.RequestStatusCancelled {
		t.Errorf("status = %s, want cancelled", req.Status)
	}
	if req.CancelNote != "changed my mind" {
		t.Errorf("cancel note = %q", req.CancelNote)
	}

	// Cancelling again is a conflict.
	if _, err := svc.Cancel(context.Background(), "req-1", ""); !errors.Is(err, service.ErrRequestAlreadyCancelled) {
		t.Fatalf("err = %v, want ErrRequestAlreadyCancelled", err)
	}
}

func TestCancel_CompletedRequestFails(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	req := pendingRequest("req-1", "nurse-1")
	req.Status = domain.RequestStatusCompleted
	requestRepo.AddRequest(req)

	_, err := svc.Cancel(context.Background(), "req-1", "")
	if !errors.Is(err, service.ErrRequestCannotBeCancelled) {
		t.Fatalf("err = %v, want ErrRequestCannotBeCancelled", err)
	}
}

func TestVisitFlow_StartCompleteReview(t *testing.T) {
	t.Parallel()

	svc, requestRepo, notifier := newLifecycleFixture()
	requestRepo.AddRequest(pendingRequest("req-1", "nurse-1"))

	if _, err := svc.Respond(context.Background(), "req-1", "nurse-1", true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// Only the selected nurse can start.
	if _, err := svc.StartVisit(context.Background(), "req-1", "nurse-9"); !errors.Is(err, service.ErrNurseNotAssigned) {
		t.Fatalf("err = %v, want ErrNurseNotAssigned", err)
	}

	req, err := svc.StartVisit(context.Background(), "req-1", "nurse-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if req.Status != domain.RequestStatusInProgress {
		t.Errorf("status = %s, want in-progress", req.Status)
	}
	if notifier.CountKind(service.NotificationEnRoute) != 1 {
		t.Error("patient should be notified the nurse is en route")
	}

	// Review before completion is rejected.
	if _, err := svc.AddReview(context.Background(), "req-1", 5, "great"); !errors.Is(err, service.ErrRequestNotCompleted) {
		t.Fatalf("err = %v, want ErrRequestNotCompleted", err)
	}

	req, err = svc.CompleteVisit(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if req.Status != domain.RequestStatusCompleted {
		t.Errorf("status = %s, want completed", req.Status)
	}

	req, err = svc.AddReview(context.Background(), "req-1", 5, "great")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if req.Review == nil || req.Review.Rating != 5 {
		t.Error("review not recorded")
	}

	// Second review is rejected.
	if _, err := svc.AddReview(context.Background(), "req-1", 4, "again"); !errors.Is(err, service.ErrAlreadyReviewed) {
		t.Fatalf("err = %v, want ErrAlreadyReviewed", err)
	}
}

func TestAddReview_RatingBounds(t *testing.T) {
	t.Parallel()

	svc, requestRepo, _ := newLifecycleFixture()
	req := pendingRequest("req-1", "nurse-1")
	req.Status = domain.RequestStatusCompleted
	requestRepo.AddRequest(req)

	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.AddReview(context.Background(), "req-1", rating, ""); !errors.Is(err, service.ErrInvalidRating) {
			t.Errorf("rating %d: err = %v, want ErrInvalidRating", rating, err)
		}
	}
}
