package repositories

import (
	"context"
	"testing"
	"time"

	"relay/internal/database"
	. "relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func TestDistanceRepositoryInsertIsSymmetric(t *testing.T) {
	repo := NewDistance(database.DB{})
	ctx := context.Background()

	repo.Insert(ctx, "Home", "7", DistanceEntry{Miles: 12, Hours: 0.5})

	entry, ok := repo.Lookup(ctx, "Home", "7")
	require.True(t, ok)
	assert.Equal(t, 12, entry.Miles)

	reversed, ok := repo.Lookup(ctx, "7", "Home")
	require.True(t, ok)
	assert.Equal(t, entry, reversed)
}

func TestDistanceRepositoryLookupMiss(t *testing.T) {
	repo := NewDistance(database.DB{})

	_, ok := repo.Lookup(context.Background(), "1", "2")
	assert.False(t, ok)
}

func TestReconcileBackfillsLeaveTimeFromHome(t *testing.T) {
	repo := NewDistance(database.DB{})
	ctx := context.Background()

	repo.Insert(ctx, "Home", "7", DistanceEntry{Miles: 12, Hours: 0.5})

	arrive := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	trip := &Trip{
		ResourceID:  5001,
		ToAccountID: intPtr(7),
		ArriveTime:  timePtr(arrive),
	}

	unresolved := repo.Reconcile(ctx, TravelData{TravelDay{trip}})

	assert.Zero(t, unresolved)
	require.NotNil(t, trip.DistanceMiles)
	assert.Equal(t, 12, *trip.DistanceMiles)
	require.NotNil(t, trip.LeaveTime)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC), *trip.LeaveTime)
	assert.Equal(t, 0.5, trip.TotalTimeHours)
}

func TestReconcileBackfillsArriveTimeToHome(t *testing.T) {
	repo := NewDistance(database.DB{})
	ctx := context.Background()

	repo.Insert(ctx, "7", "Home", DistanceEntry{Miles: 12, Hours: 0.25})

	leave := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	trip := &Trip{
		ResourceID:    5001,
		FromAccountID: intPtr(7),
		LeaveTime:     timePtr(leave),
	}

	unresolved := repo.Reconcile(ctx, TravelData{TravelDay{trip}})

	assert.Zero(t, unresolved)
	require.NotNil(t, trip.ArriveTime)
	assert.Equal(t, time.Date(2026, 3, 2, 16, 15, 0, 0, time.UTC), *trip.ArriveTime)
	assert.Equal(t, 0.25, trip.TotalTimeHours)
}

func TestReconcileCountsUnresolvedTrips(t *testing.T) {
	repo := NewDistance(database.DB{})
	ctx := context.Background()

	repo.Insert(ctx, "1", "2", DistanceEntry{Miles: 5, Hours: 0.25})

	resolved := &Trip{FromAccountID: intPtr(1), ToAccountID: intPtr(2)}
	missing := &Trip{FromAccountID: intPtr(2), ToAccountID: intPtr(3)}

	unresolved := repo.Reconcile(ctx, TravelData{TravelDay{resolved, missing}})

	assert.Equal(t, 1, unresolved)
	assert.True(t, resolved.Resolved())
	assert.False(t, missing.Resolved())
}
