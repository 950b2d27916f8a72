package travelController

import (
	"context"
	"testing"
	"time"

	"relay/internal/database"
	. "relay/internal/models"
	"relay/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	schoolA = Account{
		ID:         101,
		Name:       "Springfield Elementary",
		Address1:   "100 Main Street",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62704",
	}
	schoolB = Account{
		ID:         102,
		Name:       "Decatur Middle School",
		Address1:   "250 Oak Avenue",
		City:       "Decatur",
		State:      "IL",
		PostalCode: "62521",
	}
)

const testHomeAddress = "9 Cedar Lane Springfield, IL 62701"

func seededAccountRepo(t *testing.T) repositories.AccountRepository {
	t.Helper()
	ctx := context.Background()

	repo := repositories.NewAccount(database.DB{})
	repo.SetAccount(ctx, schoolA)
	repo.SetAccount(ctx, schoolB)
	repo.SetContractAccountID(ctx, 11, schoolA.ID)
	repo.SetContractAccountID(ctx, 12, schoolB.ID)

	return repo
}

func entry(id, contractID int, start, end time.Time) TimeEntry {
	return TimeEntry{ID: id, ContractID: contractID, StartDateTime: start, EndDateTime: end}
}

func TestSortTimeEntries(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		entry(3, 12, day.Add(13*time.Hour), day.Add(14*time.Hour)),
		entry(1, 11, day.Add(9*time.Hour), day.Add(10*time.Hour)),
		entry(2, 11, day.Add(10*time.Hour+45*time.Minute), day.Add(11*time.Hour+30*time.Minute)),
	}

	SortTimeEntries(entries)

	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestSortTimeEntriesIsStable(t *testing.T) {
	end := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		entry(1, 11, end.Add(-time.Hour), end),
		entry(2, 12, end.Add(-30*time.Minute), end),
	}

	SortTimeEntries(entries)

	// Shared end timestamps keep their original relative order.
	assert.Equal(t, 1, entries[0].ID)
	assert.Equal(t, 2, entries[1].ID)
}

func TestExtrapolateMergesSameAddressAndEmitsTrips(t *testing.T) {
	extrapolator := NewExtrapolator(seededAccountRepo(t))
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		entry(1, 11, day.Add(9*time.Hour), day.Add(10*time.Hour)),
		entry(2, 11, day.Add(10*time.Hour+45*time.Minute), day.Add(11*time.Hour+30*time.Minute)),
		entry(3, 12, day.Add(13*time.Hour), day.Add(14*time.Hour)),
	}

	travelData, err := extrapolator.Extrapolate(context.Background(), entries, testHomeAddress, 5001)
	require.NoError(t, err)
	require.Len(t, travelData, 1)

	trips := travelData[0]
	require.Len(t, trips, 3)

	// Home → A: departure unknown until distance resolution.
	first := trips[0]
	assert.Nil(t, first.FromAccountID)
	assert.Equal(t, schoolA.ID, *first.ToAccountID)
	assert.Equal(t, testHomeAddress, first.FromAddress)
	assert.Equal(t, "Home", first.FromName)
	assert.Nil(t, first.LeaveTime)
	assert.Equal(t, day.Add(9*time.Hour), *first.ArriveTime)
	assert.Zero(t, first.TotalTimeHours)

	// A → B: the two entries at A merged, so departure is the later end time.
	second := trips[1]
	assert.Equal(t, schoolA.ID, *second.FromAccountID)
	assert.Equal(t, schoolB.ID, *second.ToAccountID)
	assert.Equal(t, schoolA.Name, second.FromName)
	assert.Equal(t, day.Add(11*time.Hour+30*time.Minute), *second.LeaveTime)
	assert.Equal(t, day.Add(13*time.Hour), *second.ArriveTime)
	assert.Equal(t, 1.5, second.TotalTimeHours)

	// B → Home: arrival unknown until distance resolution.
	last := trips[2]
	assert.Equal(t, schoolB.ID, *last.FromAccountID)
	assert.Nil(t, last.ToAccountID)
	assert.Equal(t, testHomeAddress, last.ToAddress)
	assert.Equal(t, "Home", last.ToName)
	assert.Equal(t, day.Add(14*time.Hour), *last.LeaveTime)
	assert.Nil(t, last.ArriveTime)
}

func TestExtrapolateSplitsDays(t *testing.T) {
	extrapolator := NewExtrapolator(seededAccountRepo(t))

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	entries := []TimeEntry{
		entry(1, 11, monday.Add(9*time.Hour), monday.Add(15*time.Hour)),
		entry(2, 12, tuesday.Add(9*time.Hour), tuesday.Add(15*time.Hour)),
	}

	travelData, err := extrapolator.Extrapolate(context.Background(), entries, testHomeAddress, 5001)
	require.NoError(t, err)
	require.Len(t, travelData, 2)

	// Each day starts from Home regardless of where the previous one ended.
	for _, dayTrips := range travelData {
		require.Len(t, dayTrips, 2)
		assert.Nil(t, dayTrips[0].FromAccountID)
		assert.Nil(t, dayTrips[1].ToAccountID)
	}
}

func TestExtrapolateSkipsUnknownContracts(t *testing.T) {
	extrapolator := NewExtrapolator(seededAccountRepo(t))
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		entry(1, 999, day.Add(9*time.Hour), day.Add(10*time.Hour)),
		entry(2, 11, day.Add(11*time.Hour), day.Add(12*time.Hour)),
	}

	travelData, err := extrapolator.Extrapolate(context.Background(), entries, testHomeAddress, 5001)
	require.NoError(t, err)
	require.Len(t, travelData, 1)

	// The unknown contract's ticket is dropped; the day is built from the rest.
	trips := travelData[0]
	require.Len(t, trips, 2)
	assert.Equal(t, schoolA.ID, *trips[0].ToAccountID)
}

func TestExtrapolateEmptyEntries(t *testing.T) {
	extrapolator := NewExtrapolator(seededAccountRepo(t))

	_, err := extrapolator.Extrapolate(context.Background(), nil, testHomeAddress, 5001)
	assert.Error(t, err)
}

func TestExtrapolateSingleSiteDay(t *testing.T) {
	extrapolator := NewExtrapolator(seededAccountRepo(t))
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		entry(1, 11, day.Add(9*time.Hour), day.Add(15*time.Hour)),
	}

	travelData, err := extrapolator.Extrapolate(context.Background(), entries, testHomeAddress, 5001)
	require.NoError(t, err)
	require.Len(t, travelData, 1)

	trips := travelData[0]
	require.Len(t, trips, 2)
	assert.Nil(t, trips[0].FromAccountID)
	assert.Equal(t, schoolA.ID, *trips[0].ToAccountID)
	assert.Equal(t, schoolA.ID, *trips[1].FromAccountID)
	assert.Nil(t, trips[1].ToAccountID)
}
