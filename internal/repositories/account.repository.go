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

const ACCOUNT_CACHE_EXPIRY = 30 * 24 * time.Hour

// AccountRepository holds the contract→account and account lookup caches the
// pipeline resolves tickets through, plus the address→account reverse index
// that aligns distance-matrix responses with account records. Accounts and
// contracts are append-only during a run, so entries never expire in-process.
type AccountRepository interface {
	ContractAccountID(ctx context.Context, contractID int) (int, bool)
	SetContractAccountID(ctx context.Context, contractID, accountID int)
	Account(ctx context.Context, accountID int) (Account, bool)
	SetAccount(ctx context.Context, account Account)
	AccountIDForAddress(address string) (int, bool)
}

type accountRepository struct {
	db        database.DB
	mu        sync.RWMutex
	contracts map[int]int
	accounts  map[int]Account
	addresses map[string]int
	log       logger.Logger
}

func NewAccount(db database.DB) AccountRepository {
	return &accountRepository{
		db:        db,
		contracts: make(map[int]int),
		accounts:  make(map[int]Account),
		addresses: make(map[string]int),
		log:       logger.New("accountRepository"),
	}
}

func contractCacheKey(contractID int) string {
	return fmt.Sprintf("contract:%d", contractID)
}

func accountCacheKey(accountID int) string {
	return fmt.Sprintf("account:%d", accountID)
}

func (r *accountRepository) ContractAccountID(
	ctx context.Context,
	contractID int,
) (int, bool) {
	r.mu.RLock()
	accountID, ok := r.contracts[contractID]
	r.mu.RUnlock()
	if ok {
		return accountID, true
	}

	found, err := database.NewCacheBuilder(r.db.Cache.Account, contractCacheKey(contractID)).
		WithContext(ctx).
		Get(&accountID)
	if err != nil || !found {
		return 0, false
	}

	r.mu.Lock()
	r.contracts[contractID] = accountID
	r.mu.Unlock()

	return accountID, true
}

func (r *accountRepository) SetContractAccountID(
	ctx context.Context,
	contractID, accountID int,
) {
	r.mu.Lock()
	r.contracts[contractID] = accountID
	r.mu.Unlock()

	if err := database.NewCacheBuilder(r.db.Cache.Account, contractCacheKey(contractID)).
		WithStruct(accountID).
		WithTTL(ACCOUNT_CACHE_EXPIRY).
		WithContext(ctx).
		Set(); err != nil {
		r.log.Function("SetContractAccountID").
			Warn("failed to cache contract mapping", "contractID", contractID, "error", err)
	}
}

func (r *accountRepository) Account(ctx context.Context, accountID int) (Account, bool) {
	r.mu.RLock()
	account, ok := r.accounts[accountID]
	r.mu.RUnlock()
	if ok {
		return account, true
	}

	found, err := database.NewCacheBuilder(r.db.Cache.Account, accountCacheKey(accountID)).
		WithContext(ctx).
		Get(&account)
	if err != nil || !found {
		return Account{}, false
	}

	r.mu.Lock()
	r.accounts[accountID] = account
	r.addresses[account.Address()] = account.ID
	r.mu.Unlock()

	return account, true
}

func (r *accountRepository) SetAccount(ctx context.Context, account Account) {
	r.mu.Lock()
	r.accounts[account.ID] = account
	r.addresses[account.Address()] = account.ID
	r.mu.Unlock()

	if err := database.NewCacheBuilder(r.db.Cache.Account, accountCacheKey(account.ID)).
		WithStruct(account).
		WithTTL(ACCOUNT_CACHE_EXPIRY).
		WithContext(ctx).
		Set(); err != nil {
		r.log.Function("SetAccount").
			Warn("failed to cache account", "accountID", account.ID, "error", err)
	}
}

// AccountIDForAddress resolves a composite address string back to its account.
// Only addresses seen through SetAccount during this process are indexed,
// which covers every address the current batch could have sent out.
func (r *accountRepository) AccountIDForAddress(address string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accountID, ok := r.addresses[address]
	return accountID, ok
}
