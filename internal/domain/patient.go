package domain

// DefaultMaxDistanceKm applies when a patient has no distance preference.
const DefaultMaxDistanceKm = 10.0

// MatchPreferences are a patient's optional matching constraints.
// Nil pointer fields mean "no constraint", never a match failure.
type MatchPreferences struct {
	MaxDistanceKm        *float64
	PriceMin             *float64
	PriceMax             *float64
	PreferredSpecialties []string
}

// HasPriceRange reports whether both price bounds are set.
func (p MatchPreferences) HasPriceRange() bool {
	return p.PriceMin != nil && p.PriceMax != nil
}

// Patient represents a patient profile with matching preferences.
type Patient struct {
	ID          string
	Name        string
	Phone       string
	Email       string
	Preferences MatchPreferences
}
