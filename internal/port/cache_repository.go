package port

import "context"

// ItemLocker serialises read-modify-write sequences on a single item.
type ItemLocker interface {
	// Lock blocks until the item is held or ctx is done. The returned func
	// releases the lock and is safe to call once.
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}

// IdempotencyStore remembers request keys that were already processed.
type IdempotencyStore interface {
	// Claim sets a key for idempotency check, returns false if already exists
	Claim(ctx context.Context, key string) (bool, error)

	// Release forgets a key so a failed request can be retried
	Release(ctx context.Context, key string) error
}
