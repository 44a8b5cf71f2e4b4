package core

import (
	"sync"
	"time"
)

// nonceCache remembers which employee consumed which token nonce, for the
// token's remaining lifetime. A successful check-in consumes the nonce for
// that employee only; other employees scanning the same displayed code are
// unaffected. Entries expire with the token, so the cache stays small.
type nonceCache struct {
	mu      sync.Mutex
	entries map[nonceKey]time.Time
}

type nonceKey struct {
	businessID string
	nonce      string
	employeeID string
}

func newNonceCache() *nonceCache {
	return &nonceCache{entries: make(map[nonceKey]time.Time)}
}

// consumed reports whether this employee already used this nonce.
func (c *nonceCache) consumed(businessID, nonce, employeeID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.entries[nonceKey{businessID, nonce, employeeID}]
	return ok && now.Before(expiry)
}

// record marks the nonce consumed until the token's expiry and sweeps
// entries that have lapsed.
func (c *nonceCache) record(businessID, nonce, employeeID string, expiresAt, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
		}
	}
	c.entries[nonceKey{businessID, nonce, employeeID}] = expiresAt
}
