package travelController

import (
	"context"
	"math"
	"relay/internal/distancematrix"
	"relay/internal/logger"
	. "relay/internal/models"
	"relay/internal/repositories"
	"relay/internal/services"
	"strconv"
	"time"
)

// MatrixClient is the external distance-matrix collaborator.
type MatrixClient interface {
	Lookup(ctx context.Context, origins, destinations []string) (distancematrix.Matrix, error)
}

// maxResolvePasses bounds the lookup loop: after the initial full pass, one
// retry pass is allowed before unresolved trips become a fatal
// address-not-found error. Chunked requests inside a pass never consume the
// budget; it only arms once every origin has been covered.
const maxResolvePasses = 1

// metersPerMile matches the upstream conversion divisor.
const metersPerMile = 1608

// Resolver drives the distance cache to a fixed point: reconcile against the
// cache, batch the still-unresolved address pairs into bounded matrix
// requests, merge the responses back, repeat.
type Resolver struct {
	distanceRepo repositories.DistanceRepository
	accountRepo  repositories.AccountRepository
	matcher      *services.MatchService
	client       MatrixClient
	log          logger.Logger
}

func NewResolver(
	distanceRepo repositories.DistanceRepository,
	accountRepo repositories.AccountRepository,
	matcher *services.MatchService,
	client MatrixClient,
) *Resolver {
	return &Resolver{
		distanceRepo: distanceRepo,
		accountRepo:  accountRepo,
		matcher:      matcher,
		client:       client,
		log:          logger.New("Resolver"),
	}
}

// Resolve populates every trip's distance, back-filling unknown endpoint
// times along the way. Returns an error when addresses remain unresolvable
// after the retry budget.
func (r *Resolver) Resolve(ctx context.Context, travelData TravelData) error {
	log := r.log.Function("Resolve")

	for passes := 0; ; passes++ {
		unresolved := r.distanceRepo.Reconcile(ctx, travelData)
		if unresolved == 0 {
			return nil
		}

		if passes > maxResolvePasses {
			return log.Error(
				"the distance provider was unable to find an address for a school",
				"unresolvedTrips", unresolved,
			)
		}

		origins, destinations := collectUnresolvedAddresses(travelData)
		if len(origins) == 0 || len(destinations) == 0 {
			return log.Error("unresolved trips carry no addresses", "unresolvedTrips", unresolved)
		}

		chunkSize := len(origins)
		if len(origins)*len(destinations) > distancematrix.MaxMatrixElements {
			chunkSize = distancematrix.MaxMatrixElements / len(destinations)
			if chunkSize < 1 {
				return log.Error(
					"too many distinct destinations for a single matrix request",
					"destinations", len(destinations),
				)
			}
		}

		for offset := 0; offset < len(origins); offset += chunkSize {
			end := min(offset+chunkSize, len(origins))
			chunk := origins[offset:end]

			matrix, err := r.client.Lookup(ctx, chunk, destinations)
			if err != nil {
				return log.Err("distance matrix lookup failed", err)
			}

			pool := make([]string, 0, len(chunk)+len(destinations))
			pool = append(pool, chunk...)
			pool = append(pool, destinations...)

			r.merge(ctx, matrix, pool)
		}
	}
}

// collectUnresolvedAddresses gathers the distinct origin and destination
// address sets across trips without a cached distance, in first-seen order.
func collectUnresolvedAddresses(travelData TravelData) ([]string, []string) {
	var origins, destinations []string
	seenOrigins := make(map[string]bool)
	seenDestinations := make(map[string]bool)

	for _, day := range travelData {
		for _, trip := range day {
			if trip.Resolved() {
				continue
			}
			if !seenOrigins[trip.FromAddress] {
				seenOrigins[trip.FromAddress] = true
				origins = append(origins, trip.FromAddress)
			}
			if !seenDestinations[trip.ToAddress] {
				seenDestinations[trip.ToAddress] = true
				destinations = append(destinations, trip.ToAddress)
			}
		}
	}

	return origins, destinations
}

// merge writes every matrix element into the distance cache. The provider
// echoes normalized address strings, so each one is fuzzy-matched back to an
// address we sent, then mapped to its account; addresses without an account
// are the technician's home.
func (r *Resolver) merge(ctx context.Context, matrix distancematrix.Matrix, pool []string) {
	for o, origin := range matrix.OriginAddresses {
		if o >= len(matrix.Rows) {
			break
		}
		elements := matrix.Rows[o].Elements

		for d, destination := range matrix.DestinationAddresses {
			if d >= len(elements) {
				break
			}
			element := elements[d]

			miles := int(math.Ceil(float64(element.Distance.Value) / metersPerMile))
			hours := math.Ceil(float64(element.Duration.Value)/3600*4) / 4

			fromKey := r.locationKey(origin, pool)
			toKey := r.locationKey(destination, pool)

			if _, ok := r.distanceRepo.Lookup(ctx, fromKey, toKey); ok {
				continue
			}

			r.distanceRepo.Insert(ctx, fromKey, toKey, repositories.DistanceEntry{
				Miles: miles,
				Hours: hours,
			})
		}
	}
}

func (r *Resolver) locationKey(echoedAddress string, pool []string) string {
	match := r.matcher.BestMatch(echoedAddress, pool)
	if match == "" {
		return HomeLocationKey
	}

	accountID, ok := r.accountRepo.AccountIDForAddress(match)
	if !ok {
		return HomeLocationKey
	}

	return strconv.Itoa(accountID)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
