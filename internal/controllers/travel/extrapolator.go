package travelController

import (
	"context"
	"relay/internal/logger"
	. "relay/internal/models"
	"relay/internal/repositories"
	"sort"
)

// Extrapolator converts a technician's time-ordered ticket entries into the
// trips between them. A ticket only says "I was at school X from A to B"; the
// driving lives in the dead zone between one ticket's end and the next
// ticket's start, and that is what gets emitted.
type Extrapolator struct {
	accountRepo repositories.AccountRepository
	log         logger.Logger
}

func NewExtrapolator(accountRepo repositories.AccountRepository) *Extrapolator {
	return &Extrapolator{
		accountRepo: accountRepo,
		log:         logger.New("Extrapolator"),
	}
}

// SortTimeEntries orders entries ascending by end time. The sort is stable:
// back-to-back entries routinely share an end timestamp and must keep their
// original relative order.
func SortTimeEntries(entries []TimeEntry) []TimeEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EndDateTime.Before(entries[j].EndDateTime)
	})
	return entries
}

// Extrapolate walks the sorted entries one calendar day at a time and emits
// the inferred trips. Each day starts from Home and, once any site was
// visited, ends with a trip back Home whose arrival time is unknown until
// distance resolution back-fills it. Consecutive entries at the same address
// merge into one stay; no trip is emitted between them.
func (e *Extrapolator) Extrapolate(
	ctx context.Context,
	entries []TimeEntry,
	homeAddress string,
	resourceID int,
) (TravelData, error) {
	log := e.log.Function("Extrapolate")

	if len(entries) == 0 {
		return nil, log.Error("no recent tickets have been found", "resourceID", resourceID)
	}

	var travelData TravelData
	for _, bucket := range groupByDay(entries) {
		day := e.extrapolateDay(ctx, bucket, homeAddress, resourceID)
		if len(day) > 0 {
			travelData = append(travelData, day)
		}
	}

	return travelData, nil
}

// groupByDay partitions sorted entries into per-day buckets by start date.
func groupByDay(entries []TimeEntry) [][]TimeEntry {
	var buckets [][]TimeEntry
	for _, entry := range entries {
		year, month, day := entry.StartDateTime.Date()
		if len(buckets) > 0 {
			lastEntry := buckets[len(buckets)-1][0]
			lastYear, lastMonth, lastDay := lastEntry.StartDateTime.Date()
			if year == lastYear && month == lastMonth && day == lastDay {
				buckets[len(buckets)-1] = append(buckets[len(buckets)-1], entry)
				continue
			}
		}
		buckets = append(buckets, []TimeEntry{entry})
	}
	return buckets
}

func (e *Extrapolator) extrapolateDay(
	ctx context.Context,
	entries []TimeEntry,
	homeAddress string,
	resourceID int,
) TravelDay {
	log := e.log.Function("extrapolateDay")

	var day TravelDay

	lastToAddress := homeAddress
	lastFromName := "Home"
	var lastAccountID *int
	var lastTicketEnd *TimeEntry

	for i := range entries {
		entry := entries[i]

		accountID, ok := e.accountRepo.ContractAccountID(ctx, entry.ContractID)
		if !ok {
			// The contract cache was filled from this same ticket set in a
			// prior pass, so a miss is a data-integrity problem with the
			// single ticket, not the batch.
			log.Warn("unknown ticket contract", "contractID", entry.ContractID)
			continue
		}

		account, ok := e.accountRepo.Account(ctx, accountID)
		if !ok {
			log.Warn("no account data for contract", "contractID", entry.ContractID, "accountID", accountID)
			continue
		}

		accountAddress := account.Address()
		if accountAddress == lastToAddress {
			// Multiple tickets in a row at the same site. Only the stay's end
			// time advances; no driving happened.
			lastTicketEnd = &entries[i]
			continue
		}

		trip := &Trip{
			ResourceID:    resourceID,
			FromAccountID: lastAccountID,
			ToAccountID:   &account.ID,
			FromAddress:   lastToAddress,
			ToAddress:     accountAddress,
			FromName:      lastFromName,
			ToName:        account.Name,
			ArriveTime:    timePtr(entry.StartDateTime),
		}
		if lastTicketEnd != nil {
			trip.LeaveTime = timePtr(lastTicketEnd.EndDateTime)
		}
		trip.RecomputeTotalTime()
		day = append(day, trip)

		lastToAddress = accountAddress
		lastFromName = account.Name
		lastAccountID = &account.ID
		lastTicketEnd = &entries[i]
	}

	// No ticket exists for the drive home, so the trailing trip is added
	// explicitly with an unknown arrival time.
	if lastAccountID != nil {
		tripHome := &Trip{
			ResourceID:    resourceID,
			FromAccountID: lastAccountID,
			FromAddress:   lastToAddress,
			ToAddress:     homeAddress,
			FromName:      lastFromName,
			ToName:        "Home",
		}
		if lastTicketEnd != nil {
			tripHome.LeaveTime = timePtr(lastTicketEnd.EndDateTime)
		}
		day = append(day, tripHome)
	}

	return day
}
