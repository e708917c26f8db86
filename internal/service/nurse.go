package service

import (
	"context"
	"errors"

	"homecare/internal/domain"
	"homecare/internal/geo"
	"homecare/internal/redis"
	"homecare/internal/repository"
)

// NurseService handles nurse availability operations.
type NurseService struct {
	presence   redis.PresenceStoreInterface
	cacheStore *redis.CacheStore
	nurseRepo  repository.NurseRepository
}

// NewNurseService creates a new NurseService.
func NewNurseService(
	presence redis.PresenceStoreInterface,
	cacheStore *redis.CacheStore,
	nurseRepo repository.NurseRepository,
) *NurseService {
	return &NurseService{
		presence:   presence,
		cacheStore: cacheStore,
		nurseRepo:  nurseRepo,
	}
}

// UpdateLocationInput contains the parameters for updating nurse location.
type UpdateLocationInput struct {
	NurseID string
	Lat     float64
	Lng     float64
}

// UpdateLocation records a nurse's position in the geo index and marks
// them ONLINE. The geo index is the real-time source of truth; the
// persisted position is a fallback for nurses without a fresh ping.
func (s *NurseService) UpdateLocation(ctx context.Context, input UpdateLocationInput) error {
	if input.NurseID == "" {
		return ErrInvalidNurseID
	}
	if !geo.ValidLatitude(input.Lat) || !geo.ValidLongitude(input.Lng) {
		return ErrInvalidLocation
	}

	if err := s.presence.UpdateLocation(ctx, input.NurseID, input.Lat, input.Lng); err != nil {
		return err
	}

	err := s.nurseRepo.UpdateStatus(ctx, input.NurseID, domain.NurseStatusOnline)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.nurseRepo.UpdateLocation(ctx, input.NurseID, domain.Location{Lat: input.Lat, Lng: input.Lng}); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.AddAvailableNurse(ctx, input.NurseID)

		nurse, err := s.nurseRepo.GetByID(ctx, input.NurseID)
		if err == nil {
			_ = s.cacheStore.SetNurse(ctx, &redis.CachedNurse{
				ID:              nurse.ID,
				Name:            nurse.Name,
				Status:          string(nurse.Status),
				Specialties:     nurse.Specialties,
				HourlyRate:      nurse.HourlyRate,
				SpecialtyRates:  nurse.SpecialtyRates,
				Rating:          nurse.Stats.Rating,
				ServiceRadiusKm: nurse.ServiceRadiusKm,
			})
		}
	}

	return nil
}

// SetOffline marks a nurse offline and removes them from the geo index
// so matching passes stop seeing them.
func (s *NurseService) SetOffline(ctx context.Context, nurseID string) error {
	if nurseID == "" {
		return ErrInvalidNurseID
	}

	if err := s.nurseRepo.UpdateStatus(ctx, nurseID, domain.NurseStatusOffline); err != nil {
		return err
	}

	if err := s.presence.RemoveLocation(ctx, nurseID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateNurse(ctx, nurseID)
		_ = s.cacheStore.RemoveAvailableNurse(ctx, nurseID)
	}

	return nil
}
