package auth

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter throttles login attempts per client IP and login name.
type RateLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*attemptRecord
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // Failures tolerated inside the window
	WindowDuration  time.Duration // Window for counting failures
	LockoutDuration time.Duration // Block length once MaxAttempts is reached
	CleanupInterval time.Duration // How often expired records are dropped
}

// DefaultRateLimitConfig returns the limits used by the login endpoint.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiter starts a limiter and its cleanup goroutine. Call Stop when done.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	rl := &RateLimiter{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func rateLimitKey(ip, login string) string {
	return ip + "|" + strings.ToLower(login)
}

// Allow reports whether a login attempt may proceed and, if not, how long to wait.
func (rl *RateLimiter) Allow(ip, login string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, ok := rl.attempts[rateLimitKey(ip, login)]
	if !ok {
		return true, 0
	}
	if now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > rl.windowDuration || record.count < rl.maxAttempts {
		return true, 0
	}
	return false, rl.lockoutDuration
}

// RecordFailure counts a failed attempt and reports whether it triggered a lockout.
func (rl *RateLimiter) RecordFailure(ip, login string) (bool, time.Duration) {
	key := rateLimitKey(ip, login)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, ok := rl.attempts[key]
	if !ok || now.Sub(record.firstAttempt) > rl.windowDuration {
		record = &attemptRecord{firstAttempt: now}
		rl.attempts[key] = record
	}

	record.count++
	if record.count >= rl.maxAttempts {
		record.lockedUntil = now.Add(rl.lockoutDuration)
		return true, rl.lockoutDuration
	}
	return false, 0
}

// RecordSuccess forgets earlier failures for this client and login.
func (rl *RateLimiter) RecordSuccess(ip, login string) {
	rl.mu.Lock()
	delete(rl.attempts, rateLimitKey(ip, login))
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, record := range rl.attempts {
		windowExpired := now.Sub(record.firstAttempt) > rl.windowDuration
		if windowExpired && !now.Before(record.lockedUntil) {
			delete(rl.attempts, key)
		}
	}
}
