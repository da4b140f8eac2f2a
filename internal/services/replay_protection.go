package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReplayGuard remembers webhook events that already drove a transaction to a
// terminal state, so a redelivery can skip the gateway round-trip. It is an
// optimization only: Confirm stays idempotent without it.
type ReplayGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// ReplayProtection is the in-process ReplayGuard
type ReplayProtection struct {
	processedEvents map[string]time.Time
	mutex           sync.RWMutex
	cleanupInterval time.Duration
	eventTTL        time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
}

// NewReplayProtection creates an in-memory replay guard and starts its
// cleanup routine; call Stop to end it.
func NewReplayProtection(ttl time.Duration, logger *zap.Logger) *ReplayProtection {
	rp := &ReplayProtection{
		processedEvents: make(map[string]time.Time),
		cleanupInterval: time.Hour,
		eventTTL:        ttl,
		stopCleanup:     make(chan struct{}),
		logger:          logger,
	}

	go rp.startCleanupRoutine()

	return rp
}

// Seen reports whether key was remembered within the TTL
func (rp *ReplayProtection) Seen(_ context.Context, key string) (bool, error) {
	rp.mutex.RLock()
	defer rp.mutex.RUnlock()

	processedAt, exists := rp.processedEvents[eventID(key)]
	if !exists {
		return false, nil
	}
	return time.Since(processedAt) <= rp.eventTTL, nil
}

// Remember records key as processed
func (rp *ReplayProtection) Remember(_ context.Context, key string) error {
	rp.mutex.Lock()
	defer rp.mutex.Unlock()

	rp.processedEvents[eventID(key)] = time.Now()
	return nil
}

// eventID hashes the key so stored entries have a fixed size
func eventID(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (rp *ReplayProtection) startCleanupRoutine() {
	ticker := time.NewTicker(rp.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rp.cleanup()
		case <-rp.stopCleanup:
			return
		}
	}
}

// cleanup drops expired entries
func (rp *ReplayProtection) cleanup() {
	rp.mutex.Lock()
	defer rp.mutex.Unlock()

	now := time.Now()
	initialCount := len(rp.processedEvents)

	for id, processedAt := range rp.processedEvents {
		if now.Sub(processedAt) > rp.eventTTL {
			delete(rp.processedEvents, id)
		}
	}

	if cleaned := initialCount - len(rp.processedEvents); cleaned > 0 {
		rp.logger.Debug("replay protection cleanup",
			zap.Int("removed", cleaned),
			zap.Int("remaining", len(rp.processedEvents)))
	}
}

// Stop ends the cleanup routine
func (rp *ReplayProtection) Stop() {
	rp.stopOnce.Do(func() { close(rp.stopCleanup) })
}
