package service

import (
	"math"

	"homecare/internal/domain"
)

// Score component weights. The canonical mode (distance, rating, price,
// specialty) sums to 100; responsive mode trades 5 rating points for the
// response-time component so the total stays 100.
const (
	weightDistance       = 40
	weightRating         = 30
	weightRatingResp     = 25
	weightPrice          = 20
	weightSpecialty      = 10
	weightResponsiveness = 5
)

// MatchScore computes a nurse's fitness for a request as an integer in
// [0, 100]. It is a pure function of its inputs: identical inputs always
// produce the identical score.
func MatchScore(nurse *domain.Nurse, details domain.ServiceDetails, prefs domain.MatchPreferences, responsive bool) int {
	var total float64

	// Distance: closer within the effective bound scores higher. No
	// contribution when either position is unknown.
	if dist, known := nurseDistanceKm(nurse, details); known {
		bound, defined := distanceBound(nurse, prefs)
		if !defined {
			bound = domain.DefaultMaxDistanceKm
		}
		if bound > 0 {
			total += weightDistance * (1 - math.Min(dist/bound, 1))
		}
	}

	ratingWeight := float64(weightRating)
	if responsive {
		ratingWeight = weightRatingResp
	}
	total += ratingWeight * (nurse.Stats.Rating / 5)

	// Price: cheaper within the patient's range scores higher. No range,
	// no contribution.
	if prefs.HasPriceRange() {
		span := *prefs.PriceMax - *prefs.PriceMin
		if span > 0 {
			ratio := (nurse.RateFor(details.ServiceType) - *prefs.PriceMin) / span
			total += weightPrice * (1 - math.Min(math.Max(ratio, 0), 1))
		} else {
			total += weightPrice
		}
	}

	if details.ServiceType != "" && nurse.Offers(details.ServiceType) {
		total += weightSpecialty
	}

	if responsive {
		total += weightResponsiveness * math.Max(0, 1-nurse.Stats.AvgResponseMinutes/60)
	}

	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EstimatedCost returns the projected cost of a visit: rate times
// duration, or rate times 1.5 when the duration is unknown.
func EstimatedCost(nurse *domain.Nurse, details domain.ServiceDetails) float64 {
	rate := nurse.RateFor(details.ServiceType)
	if details.DurationHours > 0 {
		return rate * details.DurationHours
	}
	return rate * 1.5
}
