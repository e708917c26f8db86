package domain

// NurseStatus represents the current availability of a nurse.
type NurseStatus string

const (
	NurseStatusOnline  NurseStatus = "ONLINE"
	NurseStatusOffline NurseStatus = "OFFLINE"
	NurseStatusOnVisit NurseStatus = "ON_VISIT"
)

// Location is a geographic position.
type Location struct {
	Lat float64
	Lng float64
}

// NurseStats holds aggregate performance figures for a nurse.
type NurseStats struct {
	Rating             float64 // 0..5
	AvgResponseMinutes float64
	CompletionRate     float64 // 0..1
	TotalBookings      int
}

// Nurse represents a bookable caregiver.
// The matching engine treats nurse records as read-only; the nurse's own
// client updates status, location and rates.
type Nurse struct {
	ID              string
	Name            string
	Phone           string
	AvatarURL       string
	Status          NurseStatus
	Specialties     []string
	HourlyRate      float64
	SpecialtyRates  map[string]float64
	Stats           NurseStats
	ServiceRadiusKm float64   // 0 means no radius limit
	Location        *Location // nil when the position is unknown
}

// Offers reports whether the nurse lists the given service type.
// Tags are matched exactly, case-sensitive as stored.
func (n *Nurse) Offers(serviceType string) bool {
	for _, s := range n.Specialties {
		if s == serviceType {
			return true
		}
	}
	return false
}

// RateFor returns the hourly rate applicable to a service type: the
// specialty-specific rate when the nurse offers it, else the base rate.
func (n *Nurse) RateFor(serviceType string) float64 {
	if serviceType != "" && n.Offers(serviceType) {
		if rate, ok := n.SpecialtyRates[serviceType]; ok && rate > 0 {
			return rate
		}
	}
	return n.HourlyRate
}
