package utils

import (
	"context"
	"sync"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/shopspring/decimal"
)

// DefaultTimezone is the legal reference timezone for fiscal dates.
const DefaultTimezone = "Africa/Algiers"

// RoundMoney rounds a monetary amount half-up to 2 decimals. All persisted
// amounts go through this exactly once.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ConvertToDate truncates a timestamp to its calendar date in the given
// timezone (DefaultTimezone when empty).
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location), nil
}

func NewTrue() *bool {
	b := true
	return &b
}

var (
	businessMutexes   = make(map[string]*sync.Mutex)
	businessMutexesMu sync.Mutex
)

// LockBusiness serialises a named critical section per business. Uses
// redislock when redis is configured so multiple replicas cooperate;
// otherwise a process-wide mutex (single-replica deployments and tests).
// The returned function releases the lock.
func LockBusiness(ctx context.Context, businessId string, name string) (func(), error) {
	key := businessId + ":" + name

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:"+key, 30*time.Second, nil)
		if err == nil {
			return func() { _ = lock.Release(context.Background()) }, nil
		}
		// fall through to the local mutex on redis failure rather than
		// blocking the primary mutation
	}

	businessMutexesMu.Lock()
	mu, ok := businessMutexes[key]
	if !ok {
		mu = &sync.Mutex{}
		businessMutexes[key] = mu
	}
	businessMutexesMu.Unlock()

	mu.Lock()
	return mu.Unlock, nil
}
