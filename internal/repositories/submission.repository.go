package repositories

import (
	"context"
	"fmt"
	"relay/internal/database"
	"relay/internal/logger"
	. "relay/internal/models"
	"relay/internal/services"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const SUBMISSION_CACHE_EXPIRY = 365 * 24 * time.Hour

// SubmissionRepository is the duplicate-upload guard. A trip's fingerprint is
// checked per submission kind before upload and marked after the PSA
// acknowledges the create. LockResource serializes concurrent runs for the
// same technician so two requests cannot both pass the check before either
// marks.
type SubmissionRepository interface {
	HasBeenSubmitted(ctx context.Context, kind SubmissionKind, fingerprint string) (bool, error)
	MarkSubmitted(ctx context.Context, kind SubmissionKind, fingerprint string, resourceID int) error
	LockResource(resourceID int)
	UnlockResource(resourceID int)
}

type submissionRepository struct {
	db        database.DB
	mu        sync.Mutex
	seen      map[SubmissionKind]map[string]bool
	resources map[int]*sync.Mutex
	log       logger.Logger
}

func NewSubmission(db database.DB) SubmissionRepository {
	return &submissionRepository{
		db: db,
		seen: map[SubmissionKind]map[string]bool{
			SubmissionKindExpenseItem: {},
			SubmissionKindTimeEntry:   {},
		},
		resources: make(map[int]*sync.Mutex),
		log:       logger.New("submissionRepository"),
	}
}

// Fingerprint builds the deterministic identity string for a trip. The field
// order is fixed: two trips with the same leave/arrive times, endpoints and
// resource always hash identically, which also collapses the case of two
// technicians making the same trip together into distinct entries (the
// resource ID differs).
func Fingerprint(trip *Trip) string {
	values := []string{
		formatFingerprintTime(trip.LeaveTime),
		formatFingerprintTime(trip.ArriveTime),
		LocationKey(trip.FromAccountID),
		LocationKey(trip.ToAccountID),
		fmt.Sprintf("%d", trip.ResourceID),
	}
	return strings.Join(values, "|")
}

func formatFingerprintTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func submissionCacheKey(kind SubmissionKind, fingerprint string) string {
	return fmt.Sprintf("submission:%s:%s", kind, fingerprint)
}

func (r *submissionRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *submissionRepository) HasBeenSubmitted(
	ctx context.Context,
	kind SubmissionKind,
	fingerprint string,
) (bool, error) {
	r.mu.Lock()
	seen := r.seen[kind][fingerprint]
	r.mu.Unlock()
	if seen {
		return true, nil
	}

	var marked bool
	found, err := database.NewCacheBuilder(r.db.Cache.Submission, submissionCacheKey(kind, fingerprint)).
		WithContext(ctx).
		Get(&marked)
	if err != nil {
		r.log.Function("HasBeenSubmitted").
			Warn("failed to read submission cache", "kind", kind, "error", err)
	}
	if found && marked {
		r.remember(kind, fingerprint)
		return true, nil
	}

	if r.db.SQL == nil {
		return false, nil
	}

	var count int64
	if err := r.getDB(ctx).Model(&SubmissionRecord{}).
		Where("kind = ? AND fingerprint = ?", kind, fingerprint).
		Count(&count).Error; err != nil {
		return false, r.log.Function("HasBeenSubmitted").
			Err("failed to query submission records", err, "kind", kind)
	}

	if count > 0 {
		r.remember(kind, fingerprint)
		return true, nil
	}

	return false, nil
}

// MarkSubmitted is idempotent; re-marking an existing fingerprint is a no-op.
func (r *submissionRepository) MarkSubmitted(
	ctx context.Context,
	kind SubmissionKind,
	fingerprint string,
	resourceID int,
) error {
	log := r.log.Function("MarkSubmitted")

	r.remember(kind, fingerprint)

	if err := database.NewCacheBuilder(r.db.Cache.Submission, submissionCacheKey(kind, fingerprint)).
		WithStruct(true).
		WithTTL(SUBMISSION_CACHE_EXPIRY).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to write submission cache", "kind", kind, "error", err)
	}

	if r.db.SQL == nil {
		return nil
	}

	record := SubmissionRecord{
		Fingerprint: fingerprint,
		Kind:        kind,
		ResourceID:  resourceID,
	}
	if err := r.getDB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error; err != nil {
		return log.Err("failed to persist submission record", err, "kind", kind)
	}

	return nil
}

func (r *submissionRepository) remember(kind SubmissionKind, fingerprint string) {
	r.mu.Lock()
	if r.seen[kind] == nil {
		r.seen[kind] = make(map[string]bool)
	}
	r.seen[kind][fingerprint] = true
	r.mu.Unlock()
}

// LockResource serializes submission runs per technician.
func (r *submissionRepository) LockResource(resourceID int) {
	r.mu.Lock()
	lock, ok := r.resources[resourceID]
	if !ok {
		lock = &sync.Mutex{}
		r.resources[resourceID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
}

func (r *submissionRepository) UnlockResource(resourceID int) {
	r.mu.Lock()
	lock, ok := r.resources[resourceID]
	r.mu.Unlock()

	if ok {
		lock.Unlock()
	}
}
