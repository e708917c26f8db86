package domain

// Candidate is a read-only projection of a nurse produced by a matching
// pass. Candidates are computed fresh per pass and never mutated.
type Candidate struct {
	NurseID       string
	Name          string
	AvatarURL     string
	Specialty     string
	Score         int // 0..100
	EstimatedCost float64
	DistanceKm    float64 // rounded to one decimal; -1 when unknown
	Rating        float64
}
