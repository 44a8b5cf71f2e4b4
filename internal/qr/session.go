package qr

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TokenSource issues a fresh signed token for a business. Satisfied by
// token.Codec.
type TokenSource interface {
	Issue(businessID string, now time.Time) (string, error)
}

// Issuer starts rotating QR sessions. Each session owns its own timer and
// nonce stream, so sessions for different businesses never interfere.
type Issuer struct {
	tokens   TokenSource
	interval time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer refreshing tokens every interval.
func NewIssuer(tokens TokenSource, interval time.Duration) *Issuer {
	return &Issuer{tokens: tokens, interval: interval, now: time.Now}
}

// Session is a running rotating-token session for one business. Stop it
// when the owning display goes away; it is not reusable after Stop.
type Session struct {
	businessID string

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start issues one token immediately, delivers it via onRefresh, then keeps
// refreshing on the issuer's interval until Stop is called. Each refresh
// replaces the displayed token; the previous one stays verifiable until its
// own expiry, which tolerates scan-to-submit latency.
func (i *Issuer) Start(businessID string, onRefresh func(token string)) (*Session, error) {
	s := &Session{
		businessID: businessID,
		done:       make(chan struct{}),
	}

	tok, err := i.tokens.Issue(businessID, i.now())
	if err != nil {
		return nil, fmt.Errorf("issuing initial token: %w", err)
	}
	onRefresh(tok)

	go i.refreshLoop(s, onRefresh)

	return s, nil
}

func (i *Issuer) refreshLoop(s *Session, onRefresh func(token string)) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			// Issue under the session lock so a concurrent Stop can
			// guarantee no callback fires after it returns.
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			tok, err := i.tokens.Issue(s.businessID, i.now())
			if err != nil {
				s.mu.Unlock()
				log.Error().Err(err).Str("business_id", s.businessID).Msg("Failed to refresh QR token")
				continue
			}
			onRefresh(tok)
			s.mu.Unlock()
		}
	}
}

// Stop cancels the refresh timer. After Stop returns, no further callbacks
// fire. Calling Stop more than once is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
}
