package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles nurse profile caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// NurseCacheTTL is short because availability changes frequently.
const NurseCacheTTL = 30 * time.Second

const (
	nurseCachePrefix = "cache:nurse:"
	availableSetKey  = "nurses:available"
)

// CachedNurse holds the fields the matcher needs for quick filtering.
type CachedNurse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Status          string             `json:"status"`
	Specialties     []string           `json:"specialties"`
	HourlyRate      float64            `json:"hourly_rate"`
	SpecialtyRates  map[string]float64 `json:"specialty_rates,omitempty"`
	Rating          float64            `json:"rating"`
	ServiceRadiusKm float64            `json:"service_radius_km"`
}

// GetNurse retrieves a nurse from cache. A miss returns (nil, nil).
func (s *CacheStore) GetNurse(ctx context.Context, nurseID string) (*CachedNurse, error) {
	data, err := s.client.Get(ctx, nurseCachePrefix+nurseID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var nurse CachedNurse
	if err := json.Unmarshal(data, &nurse); err != nil {
		return nil, err
	}
	return &nurse, nil
}

// SetNurse stores a nurse in cache.
func (s *CacheStore) SetNurse(ctx context.Context, nurse *CachedNurse) error {
	data, err := json.Marshal(nurse)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, nurseCachePrefix+nurse.ID, data, NurseCacheTTL).Err()
}

// InvalidateNurse removes a nurse from cache.
func (s *CacheStore) InvalidateNurse(ctx context.Context, nurseID string) error {
	return s.client.Del(ctx, nurseCachePrefix+nurseID).Err()
}

// GetNursesBatch retrieves multiple nurses from cache using a pipeline.
// Returns a map of nurseID -> CachedNurse and a slice of missing IDs.
func (s *CacheStore) GetNursesBatch(ctx context.Context, nurseIDs []string) (map[string]*CachedNurse, []string, error) {
	if len(nurseIDs) == 0 {
		return make(map[string]*CachedNurse), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(nurseIDs))
	for _, id := range nurseIDs {
		cmds[id] = pipe.Get(ctx, nurseCachePrefix+id)
	}

	// Pipeline returns redis.Nil when any key is missing; misses are
	// handled per command below.
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, nurseIDs, err
	}

	result := make(map[string]*CachedNurse)
	var missing []string
	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}
		var nurse CachedNurse
		if err := json.Unmarshal(data, &nurse); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &nurse
	}

	return result, missing, nil
}

// AddAvailableNurse adds a nurse to the available set.
func (s *CacheStore) AddAvailableNurse(ctx context.Context, nurseID string) error {
	return s.client.SAdd(ctx, availableSetKey, nurseID).Err()
}

// RemoveAvailableNurse removes a nurse from the available set.
func (s *CacheStore) RemoveAvailableNurse(ctx context.Context, nurseID string) error {
	return s.client.SRem(ctx, availableSetKey, nurseID).Err()
}
