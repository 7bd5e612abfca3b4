package auth

import (
	"hash/fnv"
	"sync"
	"time"
)

const lockoutShardCount = 32

// lockoutRecord tracks failed logins for one account. Created lazily on the
// first failure and removed on success, admin unlock, or sweep.
type lockoutRecord struct {
	failures     int
	firstFailure time.Time
	lockedUntil  time.Time
}

func (r *lockoutRecord) isLocked(now time.Time) bool {
	return !r.lockedUntil.IsZero() && now.Before(r.lockedUntil)
}

type lockoutShard struct {
	mu      sync.Mutex
	records map[string]*lockoutRecord
}

// LockoutTracker counts failed login attempts per account and enforces a
// temporary lockout once the threshold is reached. State is process-local:
// a restart amnesties every account, which is acceptable at deployment
// cadence. Keys are sharded so unrelated accounts never contend on one lock.
type LockoutTracker struct {
	maxAttempts   int
	lockDuration  time.Duration
	attemptWindow time.Duration
	now           func() time.Time
	shards        [lockoutShardCount]*lockoutShard
}

func NewLockoutTracker(maxAttempts int, lockDuration, attemptWindow time.Duration) *LockoutTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 15 * time.Minute
	}
	if attemptWindow <= 0 {
		attemptWindow = 30 * time.Minute
	}

	t := &LockoutTracker{
		maxAttempts:   maxAttempts,
		lockDuration:  lockDuration,
		attemptWindow: attemptWindow,
		now:           time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &lockoutShard{records: make(map[string]*lockoutRecord)}
	}
	return t
}

func (t *LockoutTracker) shard(email string) *lockoutShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return t.shards[h.Sum32()%lockoutShardCount]
}

// RecordFailure registers one failed attempt. It returns whether the account
// is now locked and, if so, until when. Counting restarts after a natural
// lock expiry or when the first failure fell out of the attempt window, so a
// single stray failure long after a lockout cannot immediately re-lock.
func (t *LockoutTracker) RecordFailure(email string) (locked bool, until time.Time) {
	now := t.now().UTC()
	s := t.shard(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[email]
	if !ok {
		r = &lockoutRecord{}
		s.records[email] = r
	}

	if r.isLocked(now) {
		return true, r.lockedUntil
	}

	expired := !r.lockedUntil.IsZero() && !now.Before(r.lockedUntil)
	windowPassed := !r.firstFailure.IsZero() && now.Sub(r.firstFailure) > t.attemptWindow
	if expired || windowPassed {
		*r = lockoutRecord{}
	}

	if r.failures == 0 {
		r.firstFailure = now
	}
	r.failures++

	if r.failures >= t.maxAttempts {
		r.lockedUntil = now.Add(t.lockDuration)
		return true, r.lockedUntil
	}

	return false, time.Time{}
}

// IsLocked reports whether the account is currently locked. The read has no
// side effects; expired records are reclaimed by Sweep.
func (t *LockoutTracker) IsLocked(email string) (bool, time.Time) {
	now := t.now().UTC()
	s := t.shard(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[email]
	if !ok || !r.isLocked(now) {
		return false, time.Time{}
	}
	return true, r.lockedUntil
}

// RecordSuccess clears the account's failure state entirely.
func (t *LockoutTracker) RecordSuccess(email string) {
	s := t.shard(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, email)
}

// AdminUnlock clears the account's failure state. Authorization is the
// caller's responsibility.
func (t *LockoutTracker) AdminUnlock(email string) {
	t.RecordSuccess(email)
}

// Failures returns the current failure count for an account, for admin
// status views.
func (t *LockoutTracker) Failures(email string) int {
	s := t.shard(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[email]
	if !ok {
		return 0
	}
	return r.failures
}

// Sweep drops records whose lock has expired and whose failures fell out of
// the attempt window. Returns the number of records removed.
func (t *LockoutTracker) Sweep() int {
	now := t.now().UTC()
	removed := 0

	for _, s := range t.shards {
		s.mu.Lock()
		for email, r := range s.records {
			if r.isLocked(now) {
				continue
			}
			if r.firstFailure.IsZero() || now.Sub(r.firstFailure) > t.attemptWindow {
				delete(s.records, email)
				removed++
			}
		}
		s.mu.Unlock()
	}

	return removed
}
