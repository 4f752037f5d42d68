// Package ratelimit provides keyed token-bucket limiters for the three
// client-facing surfaces: message sends (per connection), typing events
// (per user) and connection attempts (per source IP).
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a token bucket shared across keys. Each key refills at
// burst/window tokens per second up to burst capacity. Allow is safe for
// concurrent use from any number of connections.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	rate    float64
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(burst int, window time.Duration) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		burst:   float64(burst),
		rate:    float64(burst) / window.Seconds(),
		window:  window,
		now:     time.Now,
	}
}

// Allow consumes one token for key, reporting whether the caller may
// proceed and how many whole tokens remain.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.lastSeen = now
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// Reset drops the bucket for key so the next Allow starts from full burst.
// Used when a connection goes away and its key will never be seen again.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// cleanup removes buckets idle for more than two windows.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Bank bundles the three independent limiters. The zero value is not
// usable; construct with NewBank.
type Bank struct {
	Message *Limiter
	Typing  *Limiter
	Connect *Limiter

	stop chan struct{}
	once sync.Once
}

type BankConfig struct {
	MessageBurst  int
	MessageWindow time.Duration
	TypingBurst   int
	TypingWindow  time.Duration
	ConnectBurst  int
	ConnectWindow time.Duration
}

func NewBank(cfg BankConfig) *Bank {
	b := &Bank{
		Message: NewLimiter(cfg.MessageBurst, cfg.MessageWindow),
		Typing:  NewLimiter(cfg.TypingBurst, cfg.TypingWindow),
		Connect: NewLimiter(cfg.ConnectBurst, cfg.ConnectWindow),
		stop:    make(chan struct{}),
	}
	go b.janitor()
	return b
}

func (b *Bank) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Message.cleanup()
			b.Typing.cleanup()
			b.Connect.cleanup()
		case <-b.stop:
			return
		}
	}
}

func (b *Bank) Close() {
	b.once.Do(func() { close(b.stop) })
}
