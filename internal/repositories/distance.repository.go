package repositories

import (
	"context"
	"fmt"
	"relay/internal/database"
	"relay/internal/logger"
	. "relay/internal/models"
	"sync"
	"time"
)

const DISTANCE_CACHE_EXPIRY = 90 * 24 * time.Hour

// DistanceEntry is the cached driving distance and duration between two
// locations.
type DistanceEntry struct {
	Miles int     `json:"miles"`
	Hours float64 `json:"hours"`
}

// DistanceRepository is the symmetric (origin, destination) → (miles, hours)
// cache. Distances between the same two schools are reusable across
// technicians, so the repository is process-wide and shared.
type DistanceRepository interface {
	Lookup(ctx context.Context, fromKey, toKey string) (DistanceEntry, bool)
	Insert(ctx context.Context, fromKey, toKey string, entry DistanceEntry)
	Reconcile(ctx context.Context, travelData TravelData) int
}

type distanceRepository struct {
	db      database.DB
	mu      sync.RWMutex
	entries map[string]DistanceEntry
	log     logger.Logger
}

func NewDistance(db database.DB) DistanceRepository {
	return &distanceRepository{
		db:      db,
		entries: make(map[string]DistanceEntry),
		log:     logger.New("distanceRepository"),
	}
}

func pairKey(fromKey, toKey string) string {
	return fmt.Sprintf("distance:%s:%s", fromKey, toKey)
}

func (r *distanceRepository) Lookup(
	ctx context.Context,
	fromKey, toKey string,
) (DistanceEntry, bool) {
	r.mu.RLock()
	entry, ok := r.entries[pairKey(fromKey, toKey)]
	r.mu.RUnlock()
	if ok {
		return entry, true
	}

	found, err := database.NewCacheBuilder(r.db.Cache.Distance, pairKey(fromKey, toKey)).
		WithContext(ctx).
		Get(&entry)
	if err != nil {
		r.log.Function("Lookup").
			Warn("failed to read distance from cache", "fromKey", fromKey, "toKey", toKey, "error", err)
		return DistanceEntry{}, false
	}
	if !found {
		return DistanceEntry{}, false
	}

	r.mu.Lock()
	r.entries[pairKey(fromKey, toKey)] = entry
	r.entries[pairKey(toKey, fromKey)] = entry
	r.mu.Unlock()

	return entry, true
}

// Insert stores both directions. Driving distance is treated as bidirectional
// for this domain; the same two physical locations always carry the same
// value, so concurrent last-write-wins inserts are harmless.
func (r *distanceRepository) Insert(
	ctx context.Context,
	fromKey, toKey string,
	entry DistanceEntry,
) {
	log := r.log.Function("Insert")

	r.mu.Lock()
	r.entries[pairKey(fromKey, toKey)] = entry
	r.entries[pairKey(toKey, fromKey)] = entry
	r.mu.Unlock()

	for _, key := range []string{pairKey(fromKey, toKey), pairKey(toKey, fromKey)} {
		if err := database.NewCacheBuilder(r.db.Cache.Distance, key).
			WithStruct(entry).
			WithTTL(DISTANCE_CACHE_EXPIRY).
			WithContext(ctx).
			Set(); err != nil {
			log.Warn("failed to write distance to cache", "key", key, "error", err)
		}
	}
}

// Reconcile populates every trip it can from the cache and returns the count
// of trips still unresolved. For trips with one unknown endpoint time (the
// leg from or to Home), the cached duration back-fills the missing timestamp.
// Zero unresolved trips is the resolution loop's termination condition.
func (r *distanceRepository) Reconcile(ctx context.Context, travelData TravelData) int {
	unresolved := 0

	for _, day := range travelData {
		for _, trip := range day {
			entry, ok := r.Lookup(ctx, trip.FromKey(), trip.ToKey())
			if !ok {
				if !trip.Resolved() {
					unresolved++
				}
				continue
			}

			miles := entry.Miles
			trip.DistanceMiles = &miles

			duration := time.Duration(entry.Hours * float64(time.Hour))
			if trip.FromAccountID == nil && trip.LeaveTime == nil && trip.ArriveTime != nil {
				leave := trip.ArriveTime.Add(-duration)
				trip.LeaveTime = &leave
			} else if trip.ToAccountID == nil && trip.ArriveTime == nil && trip.LeaveTime != nil {
				arrive := trip.LeaveTime.Add(duration)
				trip.ArriveTime = &arrive
			}

			trip.RecomputeTotalTime()
		}
	}

	return unresolved
}
