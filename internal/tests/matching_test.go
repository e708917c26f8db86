package tests

import (
	"context"
	"testing"
	"time"

	"homecare/internal/domain"
	"homecare/internal/redis"
	"homecare/internal/service"
)

// ──────────────────────────────────────────────
// MATCHING PASSES
// ──────────────────────────────────────────────

func matchDetails() domain.ServiceDetails {
	return domain.ServiceDetails{
		ServiceType:   "elderly-care",
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		DurationHours: 2,
		Location:      &domain.Location{Lat: 40.0, Lng: -74.0},
	}
}

func onlineNurse(id string, lat, lng float64) *domain.Nurse {
	return &domain.Nurse{
		ID:          id,
		Name:        "Nurse " + id,
		Status:      domain.NurseStatusOnline,
		Specialties: []string{"elderly-care"},
		HourlyRate:  30,
		Stats:       domain.NurseStats{Rating: 4.5},
		Location:    &domain.Location{Lat: lat, Lng: lng},
	}
}

func TestFindCandidates_RanksByScore(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()

	near := onlineNurse("near", 40.0, -74.0)
	far := onlineNurse("far", 40.06, -74.0)
	nurseRepo.AddNurse(near)
	nurseRepo.AddNurse(far)
	presence.AddNurseLocation(redis.NurseLocation{NurseID: "near", Lat: 40.0, Lng: -74.0})
	presence.AddNurseLocation(redis.NurseLocation{NurseID: "far", Lat: 40.06, Lng: -74.0})

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), matchDetails(), domain.MatchPreferences{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	if candidates[0].NurseID != "near" {
		t.Errorf("top candidate = %s, want near", candidates[0].NurseID)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Error("closer nurse should score higher")
	}
	if candidates[0].EstimatedCost != 60 {
		t.Errorf("estimated cost = %v, want 60", candidates[0].EstimatedCost)
	}
}

func TestFindCandidates_ExcludesNurses(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()
	for _, id := range []string{"n1", "n2", "n3"} {
		nurseRepo.AddNurse(onlineNurse(id, 40.0, -74.0))
		presence.AddNurseLocation(redis.NurseLocation{NurseID: id, Lat: 40.0, Lng: -74.0})
	}

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), matchDetails(), domain.MatchPreferences{}, []string{"n1", "n3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].NurseID != "n2" {
		t.Fatalf("candidates = %v, want only n2", candidates)
	}
}

func TestFindCandidates_EmptyPoolIsNotAnError(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), matchDetails(), domain.MatchPreferences{}, nil)
	if err != nil {
		t.Fatalf("no matches must not be an error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %d, want 0", len(candidates))
	}
}

func TestFindCandidates_FallsBackToFullScanWithoutLocation(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	nurse := onlineNurse("n1", 40.0, -74.0)
	nurse.Location = nil
	nurseRepo.AddNurse(nurse)

	details := matchDetails()
	details.Location = nil

	// No presence store wired; the pass scans the repository.
	matching := service.NewMatchingService(nil, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), details, domain.MatchPreferences{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].DistanceKm != -1 {
		t.Errorf("distance = %v, want -1 for unknown", candidates[0].DistanceKm)
	}
}

func TestFindCandidates_GeoPositionOverridesStored(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()

	// Stored position is stale and far; the geo index has the nurse at
	// the visit location.
	nurse := onlineNurse("n1", 41.0, -75.0)
	nurseRepo.AddNurse(nurse)
	presence.AddNurseLocation(redis.NurseLocation{NurseID: "n1", Lat: 40.0, Lng: -74.0})

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), matchDetails(), domain.MatchPreferences{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].DistanceKm != 0 {
		t.Errorf("distance = %v, want 0 from fresh geo position", candidates[0].DistanceKm)
	}
}

func TestFindCandidates_FiltersIneligible(t *testing.T) {
	t.Parallel()

	nurseRepo := NewMockNurseRepository()
	presence := NewMockPresenceStore()

	eligible := onlineNurse("eligible", 40.0, -74.0)
	offline := onlineNurse("offline", 40.0, -74.0)
	offline.Status = domain.NurseStatusOffline
	wrongSpecialty := onlineNurse("wrong-specialty", 40.0, -74.0)
	wrongSpecialty.Specialties = []string{"physiotherapy"}

	for _, n := range []*domain.Nurse{eligible, offline, wrongSpecialty} {
		nurseRepo.AddNurse(n)
		presence.AddNurseLocation(redis.NurseLocation{NurseID: n.ID, Lat: 40.0, Lng: -74.0})
	}

	matching := service.NewMatchingService(presence, nil, nurseRepo, domain.DefaultMaxDistanceKm, false)
	candidates, err := matching.FindCandidates(context.Background(), matchDetails(), domain.MatchPreferences{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].NurseID != "eligible" {
		t.Fatalf("candidates = %v, want only the eligible nurse", candidates)
	}
}
