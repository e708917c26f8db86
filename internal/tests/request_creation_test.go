package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"homecare/internal/domain"
	"homecare/internal/redis"
	"homecare/internal/service"
)

// ──────────────────────────────────────────────
// REQUEST CREATION AND OFFER DISPATCH
// ──────────────────────────────────────────────

type creationFixture struct {
	svc         *service.RequestService
	requestRepo *MockRequestRepository
	nurseRepo   *MockNurseRepository
	presence    *MockPresenceStore
	lockStore   *MockLockStore
	notifier    *MockNotifier
}

func newCreationFixture(fanout int) *creationFixture {
	requestRepo := NewMockRequestRepository()
	patientRepo := NewMockPatientRepository()
	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()
	notifier := NewMockNotifier()
	lockStore := NewMockLockStore()

	patientRepo.AddPatient(&domain.Patient{ID: "patient-1", Name: "Pat"})

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	svc := service.NewRequestService(requestRepo, patientRepo, nurseRepo, matching, notifier, lockStore, service.OfferPolicy{
		Fanout:      fanout,
		Window:      15 * time.Minute,
		PlatformFee: 5,
	})
	return &creationFixture{
		svc:         svc,
		requestRepo: requestRepo,
		nurseRepo:   nurseRepo,
		presence:    presence,
		lockStore:   lockStore,
		notifier:    notifier,
	}
}

func (f *creationFixture) addOnlineNurse(id string, lat, lng float64) {
	f.nurseRepo.AddNurse(onlineNurse(id, lat, lng))
	f.presence.AddNurseLocation(redis.NurseLocation{NurseID: id, Lat: lat, Lng: lng})
}

func validInput() service.CreateRequestInput {
	return service.CreateRequestInput{
		PatientID:     "patient-1",
		ServiceType:   "elderly-care",
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		DurationHours: 2,
		Address:       "12 Elm St",
		Location:      &domain.Location{Lat: 40.0, Lng: -74.0},
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*service.CreateRequestInput)
		wantErr error
	}{
		{"empty patient", func(in *service.CreateRequestInput) { in.PatientID = "" }, service.ErrInvalidPatientID},
		{"empty service type", func(in *service.CreateRequestInput) { in.ServiceType = "" }, service.ErrInvalidServiceType},
		{"nil location", func(in *service.CreateRequestInput) { in.Location = nil }, service.ErrMissingLocation},
		{"bad latitude", func(in *service.CreateRequestInput) { in.Location = &domain.Location{Lat: 99, Lng: 0} }, service.ErrMissingLocation},
		{"short duration", func(in *service.CreateRequestInput) { in.DurationHours = 0.5 }, service.ErrInvalidDuration},
		{"past schedule", func(in *service.CreateRequestInput) { in.ScheduledAt = time.Now().Add(-time.Hour) }, service.ErrInvalidSchedule},
	}

	for _, tc := range cases {
		input := validInput()
		tc.mutate(&input)
		if _, err := f.svc.CreateRequest(ctx, input); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}

	if f.requestRepo.CountRequests() != 0 {
		t.Error("invalid input must not persist a request")
	}
}

func TestCreateRequest_BestMatchDispatch(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("near", 40.0, -74.0)
	f.addOnlineNurse("far", 40.06, -74.0)

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Offered {
		t.Fatal("expected an offer to be dispatched")
	}
	req := result.Request
	if req.Status != domain.RequestStatusPendingResponse {
		t.Errorf("status = %s, want pending-response", req.Status)
	}
	// Best-match mode offers only the top-ranked nurse.
	if len(req.Matching.PendingNurseIDs) != 1 || req.Matching.PendingNurseIDs[0] != "near" {
		t.Errorf("pending = %v, want [near]", req.Matching.PendingNurseIDs)
	}
	// The full snapshot is kept for fallback and display.
	if len(req.Matching.Candidates) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(req.Matching.Candidates))
	}
	if req.Matching.ResponseDeadline.Sub(req.Matching.OfferSentAt) != 15*time.Minute {
		t.Error("response deadline must be offer time plus the window")
	}
	if req.Payment.PlatformFee != 5 {
		t.Errorf("platform fee = %v, want 5", req.Payment.PlatformFee)
	}
	if f.notifier.CountKind(service.NotificationNewOffer) != 1 {
		t.Error("offered nurse must be notified")
	}
}

func TestCreateRequest_MultiOfferDispatch(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(4)
	for _, id := range []string{"n1", "n2", "n3", "n4", "n5", "n6"} {
		f.addOnlineNurse(id, 40.0, -74.0)
	}

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(result.Request.Matching.PendingNurseIDs); got != 4 {
		t.Errorf("pending offers = %d, want fanout 4", got)
	}
	if f.notifier.CountKind(service.NotificationNewOffer) != 4 {
		t.Error("every offered nurse must be notified")
	}
}

func TestCreateRequest_NoEligibleNurses(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	// Only an offline nurse around.
	nurse := onlineNurse("n1", 40.0, -74.0)
	nurse.Status = domain.NurseStatusOffline
	f.nurseRepo.AddNurse(nurse)
	f.presence.AddNurseLocation(redis.NurseLocation{NurseID: "n1", Lat: 40.0, Lng: -74.0})

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("no matches must not be an error, got %v", err)
	}

	if result.Offered {
		t.Error("no offer can go out without candidates")
	}
	if result.Request.Status != domain.RequestStatusFindingNurses {
		t.Errorf("status = %s, want finding-nurses", result.Request.Status)
	}
}

func TestCreateRequest_NotificationFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)
	f.notifier.FailDelivery = true

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("notification failure must not fail the request: %v", err)
	}

	if result.Request.Status != domain.RequestStatusPendingResponse {
		t.Errorf("status = %s, offer must stand despite delivery failure", result.Request.Status)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v, want one delivery warning", result.Warnings)
	}
}

func TestRematch_ExcludesDecliningNurses(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)
	f.addOnlineNurse("n2", 40.01, -74.0)

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	reqID := result.Request.ID

	// n1 declines; the single-offer request goes terminal.
	req, err := f.svc.Respond(context.Background(), reqID, "n1", false)
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if req.Status != domain.RequestStatusDeclined {
		t.Fatalf("status = %s, want declined", req.Status)
	}

	rematch, err := f.svc.Rematch(context.Background(), reqID)
	if err != nil {
		t.Fatalf("rematch failed: %v", err)
	}

	// A fresh request is created; history is never rewritten.
	if rematch.Request.ID == reqID {
		t.Fatal("rematch must create a new request")
	}
	stored := f.requestRepo.GetRequest(reqID)
	if stored.Status != domain.RequestStatusDeclined {
		t.Error("original request must stay declined")
	}

	// The new pass skips the nurse who declined.
	for _, c := range rematch.Request.Matching.Candidates {
		if c.NurseID == "n1" {
			t.Error("declining nurse must be excluded from the rematch")
		}
	}
	if !rematch.Offered || rematch.Request.Matching.PendingNurseIDs[0] != "n2" {
		t.Errorf("rematch should offer n2, got %v", rematch.Request.Matching.PendingNurseIDs)
	}
}

func TestRematch_OnlyDeclinedRequests(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = f.svc.Rematch(context.Background(), result.Request.ID)
	if !errors.Is(err, service.ErrRequestNotRematchable) {
		t.Fatalf("err = %v, want ErrRequestNotRematchable", err)
	}
}

func TestRematch_LockContention(t *testing.T) {
	t.Parallel()

	f := newCreationFixture(1)
	f.addOnlineNurse("n1", 40.0, -74.0)

	result, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.Respond(context.Background(), result.Request.ID, "n1", false); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	f.lockStore.ForceAcquireFailure = true
	_, err = f.svc.Rematch(context.Background(), result.Request.ID)
	if !errors.Is(err, service.ErrRequestBusy) {
		t.Fatalf("err = %v, want ErrRequestBusy", err)
	}
}
