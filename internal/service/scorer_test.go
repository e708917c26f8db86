package service

import (
	"testing"

	"homecare/internal/domain"
)

func TestMatchScoreBounds(t *testing.T) {
	best := testNurse("best")
	best.Stats.Rating = 5
	best.HourlyRate = 25
	best.Location = &domain.Location{Lat: 40.0, Lng: -74.0} // at the visit

	worst := testNurse("worst")
	worst.Stats.Rating = 0
	worst.HourlyRate = 50
	worst.Specialties = nil
	worst.Location = &domain.Location{Lat: 40.2, Lng: -74.0}

	prefs := domain.MatchPreferences{PriceMin: floatPtr(25), PriceMax: floatPtr(50)}
	details := testDetails()

	for _, nurse := range []*domain.Nurse{best, worst} {
		score := MatchScore(nurse, details, prefs, false)
		if score < 0 || score > 100 {
			t.Fatalf("score %d for %s out of [0,100]", score, nurse.ID)
		}
	}

	if got := MatchScore(best, details, prefs, false); got != 100 {
		t.Fatalf("perfect nurse scored %d, want 100", got)
	}
}

func TestMatchScoreDeterministic(t *testing.T) {
	nurse := testNurse("n1")
	prefs := domain.MatchPreferences{MaxDistanceKm: floatPtr(10)}
	details := testDetails()

	first := MatchScore(nurse, details, prefs, false)
	for i := 0; i < 10; i++ {
		if got := MatchScore(nurse, details, prefs, false); got != first {
			t.Fatalf("score changed between identical calls: %d then %d", first, got)
		}
	}
}

func TestMatchScoreCloserScoresHigher(t *testing.T) {
	near := testNurse("near")
	near.Location = &domain.Location{Lat: 40.01, Lng: -74.0}
	far := testNurse("far")
	far.Location = &domain.Location{Lat: 40.07, Lng: -74.0}

	prefs := domain.MatchPreferences{MaxDistanceKm: floatPtr(10)}
	details := testDetails()

	if MatchScore(near, details, prefs, false) <= MatchScore(far, details, prefs, false) {
		t.Fatal("closer nurse did not outscore farther nurse")
	}
}

// Unknown position forfeits the distance component rather than erroring.
func TestMatchScoreUnknownDistanceZeroComponent(t *testing.T) {
	located := testNurse("located")
	unknown := testNurse("unknown")
	unknown.Location = nil

	details := testDetails()
	prefs := domain.MatchPreferences{MaxDistanceKm: floatPtr(10)}

	if MatchScore(unknown, details, prefs, false) >= MatchScore(located, details, prefs, false) {
		t.Fatal("nurse with unknown position should not outscore a co-located nurse")
	}
}

func TestMatchScoreCheaperScoresHigher(t *testing.T) {
	cheap := testNurse("cheap")
	cheap.HourlyRate = 26
	pricey := testNurse("pricey")
	pricey.HourlyRate = 48

	prefs := domain.MatchPreferences{PriceMin: floatPtr(25), PriceMax: floatPtr(50)}
	details := testDetails()

	if MatchScore(cheap, details, prefs, false) <= MatchScore(pricey, details, prefs, false) {
		t.Fatal("cheaper nurse did not outscore pricier nurse")
	}
}

// A degenerate range (min == max) awards the full price component to
// every nurse in it rather than dividing by zero.
func TestMatchScoreZeroSpanPriceRange(t *testing.T) {
	nurse := testNurse("n1")
	nurse.HourlyRate = 30

	with := MatchScore(nurse, testDetails(), domain.MatchPreferences{PriceMin: floatPtr(30), PriceMax: floatPtr(30)}, false)
	without := MatchScore(nurse, testDetails(), domain.MatchPreferences{}, false)

	if with != without+weightPrice {
		t.Fatalf("zero-span range gave %d, want %d", with, without+weightPrice)
	}
}

func TestMatchScoreSpecialtyBonus(t *testing.T) {
	offers := testNurse("offers")
	lacks := testNurse("lacks")
	lacks.Specialties = []string{"physiotherapy"}

	details := testDetails()
	diff := MatchScore(offers, details, domain.MatchPreferences{}, false) -
		MatchScore(lacks, details, domain.MatchPreferences{}, false)

	if diff != weightSpecialty {
		t.Fatalf("specialty bonus was %d, want %d", diff, weightSpecialty)
	}
}

func TestMatchScoreResponsiveMode(t *testing.T) {
	fast := testNurse("fast")
	fast.Stats.AvgResponseMinutes = 0
	slow := testNurse("slow")
	slow.Stats.AvgResponseMinutes = 60

	details := testDetails()
	if MatchScore(fast, details, domain.MatchPreferences{}, true) <= MatchScore(slow, details, domain.MatchPreferences{}, true) {
		t.Fatal("faster responder did not outscore slower responder in responsive mode")
	}

	// Both modes stay within [0,100].
	fast.Stats.Rating = 5
	fast.HourlyRate = 25
	prefs := domain.MatchPreferences{PriceMin: floatPtr(25), PriceMax: floatPtr(50)}
	if got := MatchScore(fast, details, prefs, true); got > 100 {
		t.Fatalf("responsive-mode score %d exceeds 100", got)
	}
}

func TestEstimatedCost(t *testing.T) {
	nurse := testNurse("n1")
	nurse.HourlyRate = 30
	nurse.SpecialtyRates = map[string]float64{"elderly-care": 40}

	details := testDetails()
	details.DurationHours = 3
	if got := EstimatedCost(nurse, details); got != 120 {
		t.Fatalf("cost = %v, want 120", got)
	}

	// Unknown duration falls back to a 1.5 hour estimate.
	details.DurationHours = 0
	if got := EstimatedCost(nurse, details); got != 60 {
		t.Fatalf("fallback cost = %v, want 60", got)
	}

	// Base rate applies when the service type is not offered.
	details.ServiceType = "physiotherapy"
	details.DurationHours = 2
	if got := EstimatedCost(nurse, details); got != 60 {
		t.Fatalf("base-rate cost = %v, want 60", got)
	}
}
