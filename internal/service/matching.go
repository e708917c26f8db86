package service

import (
	"context"
	"time"

	"homecare/internal/domain"
	"homecare/internal/geo"
	"homecare/internal/observability"
	"homecare/internal/redis"
	"homecare/internal/repository"
)

// MatchingService runs matching passes: it gathers nearby online nurses,
// filters them against the request constraints, scores and ranks them.
// A pass is pure computation over a snapshot of nurse data; it performs
// no writes to the request.
type MatchingService struct {
	presence             redis.PresenceStoreInterface
	cacheStore           *redis.CacheStore
	nurseRepo            repository.NurseRepository
	defaultMaxDistanceKm float64
	responsive           bool
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	presence redis.PresenceStoreInterface,
	cacheStore *redis.CacheStore,
	nurseRepo repository.NurseRepository,
	defaultMaxDistanceKm float64,
	responsive bool,
) *MatchingService {
	return &MatchingService{
		presence:             presence,
		cacheStore:           cacheStore,
		nurseRepo:            nurseRepo,
		defaultMaxDistanceKm: defaultMaxDistanceKm,
		responsive:           responsive,
	}
}

// FindCandidates returns the ranked candidate list for a request.
// Nurses in exclude are skipped (used by rematch passes so nurses who
// already declined are not offered again). An empty result is a
// legitimate no-matches outcome.
func (s *MatchingService) FindCandidates(ctx context.Context, details domain.ServiceDetails, prefs domain.MatchPreferences, exclude []string) ([]domain.Candidate, error) {
	start := time.Now()
	defer func() {
		observability.MatchLatency.Observe(time.Since(start).Seconds())
	}()
	observability.MatchPassesTotal.Inc()

	nurses, err := s.collectNurses(ctx, details, prefs)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	kept := nurses[:0]
	for _, nurse := range nurses {
		if !excluded[nurse.ID] {
			kept = append(kept, nurse)
		}
	}

	eligible := EligibleNurses(kept, details, prefs)
	observability.MatchCandidates.Observe(float64(len(eligible)))

	candidates := make([]domain.Candidate, 0, len(eligible))
	for _, nurse := range eligible {
		candidates = append(candidates, s.buildCandidate(nurse, details, prefs))
	}

	return SelectTop(candidates, len(candidates)), nil
}

// collectNurses gathers the raw nurse pool for a pass. With a known
// visit location it uses the Redis geo index (closest first) and fills
// profiles from cache then database; without one it falls back to a
// full scan.
func (s *MatchingService) collectNurses(ctx context.Context, details domain.ServiceDetails, prefs domain.MatchPreferences) ([]*domain.Nurse, error) {
	if details.Location == nil || s.presence == nil {
		return s.nurseRepo.GetAll(ctx)
	}

	searchRadius := s.defaultMaxDistanceKm
	if prefs.MaxDistanceKm != nil && *prefs.MaxDistanceKm > searchRadius {
		searchRadius = *prefs.MaxDistanceKm
	}

	nearby, err := s.presence.FindNearbyNurses(ctx, details.Location.Lat, details.Location.Lng, searchRadius)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	ids := make([]string, len(nearby))
	positions := make(map[string]domain.Location, len(nearby))
	for i, loc := range nearby {
		ids[i] = loc.NurseID
		positions[loc.NurseID] = domain.Location{Lat: loc.Lat, Lng: loc.Lng}
	}

	// Use cached profiles to drop nurses that are known offline before
	// hitting the database.
	fetchIDs := ids
	if s.cacheStore != nil {
		cached, missing, err := s.cacheStore.GetNursesBatch(ctx, ids)
		if err == nil {
			fetchIDs = missing
			for id, c := range cached {
				if c.Status == string(domain.NurseStatusOnline) {
					fetchIDs = append(fetchIDs, id)
				}
			}
		}
	}

	nurses, err := s.nurseRepo.GetByIDs(ctx, fetchIDs)
	if err != nil {
		return nil, err
	}

	// The geo index position is fresher than the persisted one.
	byID := make(map[string]*domain.Nurse, len(nurses))
	for _, nurse := range nurses {
		if pos, ok := positions[nurse.ID]; ok {
			nurse.Location = &domain.Location{Lat: pos.Lat, Lng: pos.Lng}
		}
		byID[nurse.ID] = nurse
		s.cacheNurseAsync(nurse)
	}

	// Preserve the closest-first order from the geo index.
	ordered := make([]*domain.Nurse, 0, len(nurses))
	for _, id := range ids {
		if nurse, ok := byID[id]; ok {
			ordered = append(ordered, nurse)
		}
	}

	return ordered, nil
}

func (s *MatchingService) buildCandidate(nurse *domain.Nurse, details domain.ServiceDetails, prefs domain.MatchPreferences) domain.Candidate {
	distance := -1.0
	if d, known := nurseDistanceKm(nurse, details); known {
		distance = geo.RoundKm(d)
	}

	specialty := details.ServiceType
	if specialty == "" && len(nurse.Specialties) > 0 {
		specialty = nurse.Specialties[0]
	}

	return domain.Candidate{
		NurseID:       nurse.ID,
		Name:          nurse.Name,
		AvatarURL:     nurse.AvatarURL,
		Specialty:     specialty,
		Score:         MatchScore(nurse, details, prefs, s.responsive),
		EstimatedCost: EstimatedCost(nurse, details),
		DistanceKm:    distance,
		Rating:        nurse.Stats.Rating,
	}
}

// cacheNurseAsync caches a nurse profile fire-and-forget.
func (s *MatchingService) cacheNurseAsync(nurse *domain.Nurse) {
	if s.cacheStore == nil {
		return
	}
	cached := &redis.CachedNurse{
		ID:              nurse.ID,
		Name:            nurse.Name,
		Status:          string(nurse.Status),
		Specialties:     nurse.Specialties,
		HourlyRate:      nurse.HourlyRate,
		SpecialtyRates:  nurse.SpecialtyRates,
		Rating:          nurse.Stats.Rating,
		ServiceRadiusKm: nurse.ServiceRadiusKm,
	}
	go func() {
		_ = s.cacheStore.SetNurse(context.Background(), cached)
	}()
}
