package models

import (
	"fmt"
	"math"
	"time"
)

// HomeLocationKey is the distance-cache key used for the technician's home,
// which has no billing account behind it.
const HomeLocationKey = "Home"

// TimeEntry is a single ticket time entry as returned by the PSA. Entries of
// the travel type are filtered out before extrapolation; the rest are the raw
// material trips are inferred from.
type TimeEntry struct {
	ID            int       `json:"id"`
	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	ContractID    int       `json:"contractID"`
	EntryType     int       `json:"entryType"`
}

// Account is a billable client site (a school) with a physical address.
type Account struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Address1   string `json:"address1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// Address renders the composite address in the format the distance-matrix
// provider accepts.
func (a Account) Address() string {
	return fmt.Sprintf("%s %s, %s %s", a.Address1, a.City, a.State, a.PostalCode)
}

// Trip is an inferred travel leg between two site visits. A nil account ID
// means Home; a nil timestamp means unknown until distance resolution
// back-fills it.
type Trip struct {
	ResourceID    int        `json:"resourceID"`
	FromAccountID *int       `json:"fromAccountID"`
	ToAccountID   *int       `json:"toAccountID"`
	FromAddress   string     `json:"fromAddress"`
	ToAddress     string     `json:"toAddress"`
	FromName      string     `json:"fromName"`
	ToName        string     `json:"toName"`
	LeaveTime     *time.Time `json:"leaveTime"`
	ArriveTime    *time.Time `json:"arriveTime"`

	TotalTimeHours float64 `json:"totalTimeHours"`
	DistanceMiles  *int    `json:"distanceMiles"`

	AnnualProjectID *int `json:"annualProjectID,omitempty"`
	TaskID          *int `json:"taskID,omitempty"`
}

// TravelDay is one calendar day's trips in visitation order.
type TravelDay []*Trip

// TravelData is one TravelDay per day that had ticket activity, in
// chronological order.
type TravelData []TravelDay

// Trips flattens the per-day structure into a single ordered list.
func (td TravelData) Trips() []*Trip {
	var trips []*Trip
	for _, day := range td {
		trips = append(trips, day...)
	}
	return trips
}

// LocationKey maps an optional account ID onto a distance-cache key.
func LocationKey(accountID *int) string {
	if accountID == nil {
		return HomeLocationKey
	}
	return fmt.Sprintf("%d", *accountID)
}

// FromKey and ToKey expose the trip endpoints as cache keys.
func (t *Trip) FromKey() string { return LocationKey(t.FromAccountID) }
func (t *Trip) ToKey() string   { return LocationKey(t.ToAccountID) }

// Resolved reports whether the trip has a cached distance.
func (t *Trip) Resolved() bool { return t.DistanceMiles != nil }

// AssociatedAccountID picks the billable account for upload purposes,
// preferring the destination. Both endpoints at Home never happens for
// emitted trips.
func (t *Trip) AssociatedAccountID() *int {
	if t.ToAccountID != nil {
		return t.ToAccountID
	}
	return t.FromAccountID
}

// EntryDate picks the timestamp an uploaded entry is dated with.
func (t *Trip) EntryDate() *time.Time {
	if t.ArriveTime != nil {
		return t.ArriveTime
	}
	return t.LeaveTime
}

// RecomputeTotalTime refreshes TotalTimeHours from the endpoint timestamps.
// While either endpoint is unknown the value stays zero and is treated as
// pending.
func (t *Trip) RecomputeTotalTime() {
	if t.LeaveTime == nil || t.ArriveTime == nil {
		t.TotalTimeHours = 0
		return
	}
	t.TotalTimeHours = RoundToQuarterHour(*t.LeaveTime, *t.ArriveTime)
}

// RoundToQuarterHour returns the elapsed hours between two timestamps rounded
// to the nearest quarter hour, half up.
func RoundToQuarterHour(start, end time.Time) float64 {
	hours := end.Sub(start).Seconds() / 3600
	return math.Round(hours*4) / 4
}
