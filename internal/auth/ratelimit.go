package auth

import (
	"hash/fnv"
	"sync"
	"time"
)

const rateShardCount = 32

// RouteClass identifies a group of endpoints sharing one rate-limit policy.
type RouteClass string

const (
	RouteLogin          RouteClass = "login"
	RouteRegister       RouteClass = "register"
	RouteForgotPassword RouteClass = "forgot_password"
	RouteAPI            RouteClass = "api"
	RouteGlobal         RouteClass = "global"
)

// RatePolicy caps requests per client address within a fixed window.
type RatePolicy struct {
	Requests int
	Window   time.Duration
}

// PolicyTable maps each route class to its policy. Fixed at configuration
// time; classes without an entry fall back to the global policy.
type PolicyTable map[RouteClass]RatePolicy

type rateBucket struct {
	count       int
	windowStart time.Time
}

type rateShard struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

// RouteLimiter enforces per-address request quotas independently of account
// identity. Admission control only: requests over quota are rejected, never
// queued, and a rejected request does not consume quota.
type RouteLimiter struct {
	policies PolicyTable
	now      func() time.Time
	shards   [rateShardCount]*rateShard
}

func NewRouteLimiter(policies PolicyTable) *RouteLimiter {
	l := &RouteLimiter{
		policies: policies,
		now:      time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &rateShard{buckets: make(map[string]*rateBucket)}
	}
	return l
}

func (l *RouteLimiter) policy(class RouteClass) RatePolicy {
	if p, ok := l.policies[class]; ok {
		return p
	}
	if p, ok := l.policies[RouteGlobal]; ok {
		return p
	}
	return RatePolicy{Requests: 200, Window: 24 * time.Hour}
}

func (l *RouteLimiter) shard(key string) *rateShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%rateShardCount]
}

// Allow decides whether a request from addr on the given route class may
// proceed. When the quota is exhausted it returns false plus the wait until
// the window rolls over.
func (l *RouteLimiter) Allow(addr string, class RouteClass) (bool, time.Duration) {
	p := l.policy(class)
	now := l.now().UTC()
	key := string(class) + "|" + addr
	s := l.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &rateBucket{windowStart: now}
		s.buckets[key] = b
	}

	if now.Sub(b.windowStart) >= p.Window {
		b.count = 0
		b.windowStart = now
	}

	if b.count >= p.Requests {
		retryAfter := b.windowStart.Add(p.Window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	b.count++
	return true, 0
}

// Sweep drops buckets whose window has long passed. Returns the number of
// buckets removed.
func (l *RouteLimiter) Sweep() int {
	now := l.now().UTC()
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			// Windows differ per class; the longest configured window bounds
			// how stale a bucket can still matter.
			if now.Sub(b.windowStart) >= l.maxWindow() {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}

	return removed
}

func (l *RouteLimiter) maxWindow() time.Duration {
	max := 24 * time.Hour
	for _, p := range l.policies {
		if p.Window > max {
			max = p.Window
		}
	}
	return max
}
