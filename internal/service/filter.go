package service

import (
	"math"

	"homecare/internal/domain"
	"homecare/internal/geo"
)

// distanceBound returns the effective maximum distance for a nurse: the
// smaller of the patient's max-distance preference and the nurse's own
// service radius. The second return is false when neither bound is
// defined, in which case distance does not constrain the match.
func distanceBound(nurse *domain.Nurse, prefs domain.MatchPreferences) (float64, bool) {
	bound := math.Inf(1)
	defined := false

	if prefs.MaxDistanceKm != nil {
		bound = *prefs.MaxDistanceKm
		defined = true
	}
	if nurse.ServiceRadiusKm > 0 && nurse.ServiceRadiusKm < bound {
		bound = nurse.ServiceRadiusKm
		defined = true
	}

	return bound, defined
}

// nurseDistanceKm returns the great-circle distance between the nurse and
// the visit location, or false when either position is unknown.
func nurseDistanceKm(nurse *domain.Nurse, details domain.ServiceDetails) (float64, bool) {
	if nurse.Location == nil || details.Location == nil {
		return 0, false
	}
	return geo.DistanceKm(details.Location.Lat, details.Location.Lng, nurse.Location.Lat, nurse.Location.Lng), true
}

// EligibleNurses returns the subset of nurses eligible for a request.
// Each rule excludes independently; absent preferences never exclude.
// An empty result is a legitimate no-matches outcome, not an error.
func EligibleNurses(nurses []*domain.Nurse, details domain.ServiceDetails, prefs domain.MatchPreferences) []*domain.Nurse {
	eligible := make([]*domain.Nurse, 0, len(nurses))

	for _, nurse := range nurses {
		if nurse.Status != domain.NurseStatusOnline {
			continue
		}

		if dist, known := nurseDistanceKm(nurse, details); known {
			if bound, defined := distanceBound(nurse, prefs); defined && dist > bound {
				continue
			}
		}

		if prefs.HasPriceRange() {
			rate := nurse.RateFor(details.ServiceType)
			if rate < *prefs.PriceMin || rate > *prefs.PriceMax {
				continue
			}
		}

		if details.ServiceType != "" && !nurse.Offers(details.ServiceType) {
			continue
		}

		eligible = append(eligible, nurse)
	}

	return eligible
}
