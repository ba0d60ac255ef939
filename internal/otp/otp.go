// Package otp issues and verifies the single-use codes that gate waste
// collection handoffs: the contributor receives the code by email and
// the collector must present it to flip the post to collected.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrInvalid means no matching code is outstanding, or the presented
	// code is wrong.
	ErrInvalid = errors.New("otp: invalid code")
	// ErrExpired means the code existed but its window has passed.
	ErrExpired = errors.New("otp: code expired")
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 10 * time.Minute

type entry struct {
	code      string
	expiresAt time.Time
}

// Manager holds outstanding codes keyed by (post, collector) and expires
// them in the background. Codes are single use: a successful Verify
// consumes the code.
type Manager struct {
	mu     sync.Mutex
	codes  map[string]*entry
	ttl    time.Duration
	stopCh chan struct{}
}

// NewManager creates a manager. ttl <= 0 falls back to DefaultTTL.
func NewManager(ttl, cleanupInterval time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m := &Manager{
		codes:  map[string]*entry{},
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go m.cleanupLoop(cleanupInterval)
	return m
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.codes {
				if now.After(e.expiresAt) {
					delete(m.codes, k)
				}
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

// Stop stops internal goroutines (useful for tests).
func (m *Manager) Stop() {
	close(m.stopCh)
}

// Issue generates a fresh 6-digit code for the post/collector pair,
// replacing any outstanding one.
func (m *Manager) Issue(postID, collectorID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	m.mu.Lock()
	m.codes[key(postID, collectorID)] = &entry{
		code:      code,
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
	return code, nil
}

// Verify consumes the outstanding code for the pair if it matches and
// has not expired. A wrong code leaves the outstanding one intact so a
// typo does not force a re-issue.
func (m *Manager) Verify(postID, collectorID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(postID, collectorID)
	e, ok := m.codes[k]
	if !ok {
		return ErrInvalid
	}
	if time.Now().After(e.expiresAt) {
		delete(m.codes, k)
		return ErrExpired
	}
	if e.code != code {
		return ErrInvalid
	}
	delete(m.codes, k)
	return nil
}

func key(postID, collectorID string) string {
	return postID + "|" + collectorID
}
