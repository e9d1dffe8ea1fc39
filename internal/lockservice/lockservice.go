// Package lockservice implements the per-node Cluster Lock Service: it
// grants and releases named advisory locks over cluster entities to
// authenticated requesters, with an auto-release timer as the sole
// stale-lock recovery mechanism (SPEC_FULL.md §4.3).
//
// The timer bookkeeping here is grounded on the teacher's catrate package
// (github.com/joeycumines/go-catrate): that package evicts rate-limit
// state once it goes idle past a retention window; this package evicts lock
// records once their auto-release timer fires, past a held-duration window.
// Where catrate polls a shared ticker across all categories, a lock record
// needs a precise per-key deadline (the owner must be evicted at exactly its
// configured timeout, not "some time after"), so each record uses its own
// time.AfterFunc rather than a shared sweep.
package lockservice

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joeycumines/clustermgmt/internal/logging"
)

// EntityType is the closed set of lockable entity kinds.
type EntityType string

// The three entity-type tags are the abbreviated forms glusterd-locks.c
// actually uses as both the lock's diagnostic type and the dictionary key
// prefix (e.g. "volcount", "volname1") — "vol", not "volume".
const (
	EntityVolume   EntityType = "vol"
	EntitySnapshot EntityType = "snap"
	EntityGlobal   EntityType = "global"
)

// DefaultHoldPolicy reports whether entities of t are locked-per-transaction
// by default, per spec.md §4.3 ("volume: locked-per-transaction by default;
// snapshot, global: not locked-per-transaction by default").
func DefaultHoldPolicy(t EntityType) bool {
	return t == EntityVolume
}

// Key identifies a lockable entity.
type Key struct {
	Type EntityType
	Name string
}

func (k Key) String() string { return string(k.Type) + ":" + k.Name }

// Sub-codes surfaced alongside the ordinal errors below.
const (
	SubCodeAnotherTransaction = "AnotherTransaction"
)

var (
	// ErrAlreadyHeld is returned by Acquire when the key is held by a
	// different requester.
	ErrAlreadyHeld = errors.New("lockservice: already held by another transaction")
	// ErrNotHeld is returned by Release when the key has no record.
	ErrNotHeld = errors.New("lockservice: not held")
	// ErrOwnerMismatch is returned by Release when the requester does not
	// own the record.
	ErrOwnerMismatch = errors.New("lockservice: owner mismatch")
	// ErrPartialFail is returned by AcquireMany when any entry failed; the
	// service has already rolled back every lock taken during this call.
	ErrPartialFail = errors.New("lockservice: partial failure, rolled back")
)

// Entry is one (type, name) pair to acquire or release, as used by
// AcquireMany/ReleaseMany.
type Entry struct {
	Type EntityType
	Name string
}

// record is the in-memory evidence that a named entity is reserved.
type record struct {
	owner     string
	backtrace string
	timer     *time.Timer
	attempts  *ringBuffer // recent acquire-attempt timestamps, diagnostics only
}

// Service is a single node's cluster lock service.
type Service struct {
	mu      sync.Mutex
	records map[Key]*record
	timeout time.Duration
	log     *logging.Logger
}

// Config controls Service construction.
type Config struct {
	// Timeout is the auto-release duration for newly acquired locks.
	// Defaults to 180s, per spec.md §9's resolved default.
	Timeout time.Duration
}

// New constructs a Service. log may be nil.
func New(cfg *Config, log *logging.Logger) *Service {
	timeout := 180 * time.Second
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &Service{
		records: make(map[Key]*record),
		timeout: timeout,
		log:     log,
	}
}

// Acquire grants the lock keyed by (entityType, entityName) to requesterUUID
// if it is vacant, installing an auto-release timer. If already held by a
// different owner, ErrAlreadyHeld (sub-code AnotherTransaction) is returned
// and the map is left unchanged.
func (s *Service) Acquire(entityType EntityType, entityName, requesterUUID string) error {
	key := Key{Type: entityType, Name: entityName}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok {
		existing.attempts.Insert(existing.attempts.Len(), time.Now().UnixNano())
		if existing.owner == requesterUUID {
			// idempotent-by-UUID re-acquire, per spec.md §4.5 idempotence note.
			return nil
		}
		s.logEvent("lock_already_held", key, existing.owner)
		return fmt.Errorf("%w: key=%s owner=%s (%s)", ErrAlreadyHeld, key, existing.owner, SubCodeAnotherTransaction)
	}

	rec := &record{
		owner:     requesterUUID,
		backtrace: captureBacktrace(),
		attempts:  newRingBuffer(8),
	}
	rec.attempts.Insert(rec.attempts.Len(), time.Now().UnixNano())
	rec.timer = time.AfterFunc(s.timeout, func() { s.expire(key, requesterUUID) })

	s.records[key] = rec
	s.logEvent("lock_acquired", key, requesterUUID)
	return nil
}

// Release removes the record keyed by (entityType, entityName), cancelling
// its timer, but only if owner matches requesterUUID.
func (s *Service) Release(entityType EntityType, entityName, requesterUUID string) error {
	key := Key{Type: entityType, Name: entityName}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: key=%s", ErrNotHeld, key)
	}
	if rec.owner != requesterUUID {
		return fmt.Errorf("%w: key=%s owner=%s requester=%s", ErrOwnerMismatch, key, rec.owner, requesterUUID)
	}

	rec.timer.Stop()
	delete(s.records, key)
	s.logEvent("lock_released", key, requesterUUID)
	return nil
}

// expire is invoked by a record's auto-release timer. It deletes the record
// (and implicitly its backtrace, held inline on the record) iff it is still
// owned by requesterUUID, i.e. it has not already been released and
// re-acquired by someone else under the same key.
func (s *Service) expire(key Key, requesterUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.owner != requesterUUID {
		return
	}
	delete(s.records, key)
	if s.log != nil {
		s.log.Info().Str("key", key.String()).Str("owner", requesterUUID).Log("lock auto-released on timer expiry")
	}
}

// AcquireMany acquires each entry in order. If any acquisition fails, every
// lock taken earlier in this call is released, in reverse order, and
// ErrPartialFail (wrapping the first failure) is returned.
func (s *Service) AcquireMany(entries []Entry, requesterUUID string) error {
	taken := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if err := s.Acquire(e.Type, e.Name, requesterUUID); err != nil {
			for i := len(taken) - 1; i >= 0; i-- {
				_ = s.Release(taken[i].Type, taken[i].Name, requesterUUID)
			}
			return fmt.Errorf("%w: %w", ErrPartialFail, err)
		}
		taken = append(taken, e)
	}
	return nil
}

// ReleaseMany best-effort releases each entry, continuing past failures, and
// reports the first non-nil error encountered (if any).
func (s *Service) ReleaseMany(entries []Entry, requesterUUID string) error {
	var first error
	for _, e := range entries {
		if err := s.Release(e.Type, e.Name, requesterUUID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LockInfo is a diagnostic snapshot of one held lock, for Inspect.
type LockInfo struct {
	Key       Key
	Owner     string
	Backtrace string
}

// Inspect returns a snapshot of every currently-held lock, for operator
// diagnostics (e.g. "which transaction is holding up this volume").
func (s *Service) Inspect() []LockInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LockInfo, 0, len(s.records))
	for k, r := range s.records {
		out = append(out, LockInfo{Key: k, Owner: r.owner, Backtrace: r.backtrace})
	}
	return out
}

func (s *Service) logEvent(msg string, key Key, owner string) {
	if s.log == nil {
		return
	}
	s.log.Debug().Str("key", key.String()).Str("owner", owner).Log(msg)
}

func captureBacktrace() string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pc[:n])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}
