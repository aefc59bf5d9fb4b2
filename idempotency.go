package cartflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultIdempotencyTTL is how long a processed command is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord remembers the outcome of one processed command.
type IdempotencyRecord struct {
	Key         string
	CommandType string
	Result      CommandResult
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the record is past its TTL at now.
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IdempotencyStore keeps records of processed commands.
//
// Reserve claims key for one caller. It returns the stored record if the
// command already completed, reserved=true if the caller now owns the key,
// and reserved=false with a nil record if another caller holds it. Store
// completes a reservation; Release gives it up so the command can be
// retried.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key string) (existing *IdempotencyRecord, reserved bool, err error)
	Store(ctx context.Context, record *IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

// MemoryIdempotencyStore is an IdempotencyStore backed by a map.
type MemoryIdempotencyStore struct {
	mu       sync.RWMutex
	records  map[string]*IdempotencyRecord
	inFlight map[string]struct{}
	now      func() time.Time
}

// NewMemoryIdempotencyStore creates an empty MemoryIdempotencyStore.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		records:  make(map[string]*IdempotencyRecord),
		inFlight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Get returns the unexpired record for key, if any.
func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(key), nil
}

func (s *MemoryIdempotencyStore) lookup(key string) *IdempotencyRecord {
	r, ok := s.records[key]
	if !ok || r.IsExpired(s.now()) {
		return nil
	}
	copied := *r
	return &copied
}

// Reserve claims key under the write lock.
func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string) (*IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.lookup(key); r != nil {
		return r, false, nil
	}
	if _, busy := s.inFlight[key]; busy {
		return nil, false, nil
	}
	s.inFlight[key] = struct{}{}
	return nil, true, nil
}

// Store saves record, replacing any previous record for its key, and ends
// the key's reservation.
func (s *MemoryIdempotencyStore) Store(_ context.Context, record *IdempotencyRecord) error {
	copied := *record
	s.mu.Lock()
	s.records[record.Key] = &copied
	delete(s.inFlight, record.Key)
	s.mu.Unlock()
	return nil
}

// Release drops the reservation on key.
func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
	return nil
}

// Cleanup drops expired records and returns how many were removed.
func (s *MemoryIdempotencyStore) Cleanup() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, r := range s.records {
		if r.IsExpired(now) {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held, expired ones included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ IdempotencyStore = (*MemoryIdempotencyStore)(nil)

// IdempotencyKey returns the key a command is deduplicated on: its type and
// command ID. Commands without a command ID have no key.
func IdempotencyKey(cmd Command) string {
	c, ok := cmd.(interface{ GetCommandID() string })
	if !ok || c.GetCommandID() == "" {
		return ""
	}
	return cmd.CommandType() + ":" + c.GetCommandID()
}

// IdempotencyMiddleware replays the recorded result when a command with an
// already processed command ID is dispatched again. A duplicate that arrives
// while the first dispatch is still running fails with ErrCommandInProgress.
// Only successful results are recorded, so a rejected command can be retried
// with the same ID. Store failures never fail the command; they are logged
// and the command runs.
func IdempotencyMiddleware(store IdempotencyStore, ttl time.Duration, logger Logger) Middleware {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = NopLogger()
	}

	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (result CommandResult, err error) {
			key := IdempotencyKey(cmd)
			if key == "" {
				return next(ctx, cmd)
			}

			record, reserved, rerr := store.Reserve(ctx, key)
			switch {
			case rerr != nil:
				logger.Warn("idempotency lookup failed", "key", key, "error", rerr)
			case record != nil:
				logger.Debug("replaying processed command", "key", key, "revision", record.Result.Revision)
				return record.Result, nil
			case !reserved:
				logger.Info("duplicate command in progress", "key", key)
				return CommandResult{}, fmt.Errorf("%w: %s", ErrCommandInProgress, key)
			}

			completed := false
			if reserved {
				defer func() {
					if !completed {
						if lerr := store.Release(context.WithoutCancel(ctx), key); lerr != nil {
							logger.Warn("idempotency reservation not released", "key", key, "error", lerr)
						}
					}
				}()
			}

			result, err = next(ctx, cmd)
			if err != nil {
				return result, err
			}

			now := time.Now()
			rec := &IdempotencyRecord{
				Key:         key,
				CommandType: cmd.CommandType(),
				Result:      result,
				ProcessedAt: now,
				ExpiresAt:   now.Add(ttl),
			}
			if serr := store.Store(ctx, rec); serr != nil {
				logger.Warn("idempotency record not saved", "key", key, "error", serr)
				return result, nil
			}
			completed = true
			return result, nil
		}
	}
}
