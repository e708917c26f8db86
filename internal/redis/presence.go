package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const nurseLocationKey = "nurses:locations"

// NurseLocation represents a nurse's position.
type NurseLocation struct {
	NurseID string
	Lat     float64
	Lng     float64
}

// PresenceStore handles nurse location operations in Redis.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a new PresenceStore.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

// UpdateLocation stores a nurse's location using GEOADD.
func (s *PresenceStore) UpdateLocation(ctx context.Context, nurseID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, nurseLocationKey, &redis.GeoLocation{
		Name:      nurseID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyNurses returns nurse positions within the given radius (km),
// closest first.
func (s *PresenceStore) FindNearbyNurses(ctx context.Context, lat, lng, radiusKm float64) ([]NurseLocation, error) {
	results, err := s.client.GeoRadius(ctx, nurseLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]NurseLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, NurseLocation{
			NurseID: r.Name,
			Lat:     r.Latitude,
			Lng:     r.Longitude,
		})
	}

	return locations, nil
}

// RemoveLocation removes a nurse's location from the geo index.
func (s *PresenceStore) RemoveLocation(ctx context.Context, nurseID string) error {
	return s.client.ZRem(ctx, nurseLocationKey, nurseID).Err()
}
