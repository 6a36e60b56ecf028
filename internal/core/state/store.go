// Package state owns the durable processing state of documents: a keyed
// store over a TTL cache, and a manager that is the sole authority for
// stage transitions.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/olamide-hq/ragline/internal/core/cache"
	"github.com/olamide-hq/ragline/internal/models"
)

// DefaultTTL bounds how long a processing state is retained.
const DefaultTTL = 7 * 24 * time.Hour

const stateKeyPrefix = "doc_state:"

// Store persists ProcessingState records in a key-value cache. It is a thin
// translation layer: key construction, (de)serialization and TTL, nothing
// else. Reads and deletes degrade softly on cache failure so a transient
// outage looks like "not yet processed" instead of crashing the pipeline.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
	clock func() time.Time
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl, clock: time.Now}
}

// stateKey must remain stable for out-of-process cache inspection tooling.
func stateKey(contentHash string) string {
	return stateKeyPrefix + contentHash
}

// Get loads the state for contentHash. It returns (nil, nil) when the state
// is absent; cache read failures are logged and treated as absence.
func (s *Store) Get(ctx context.Context, contentHash string) (*models.ProcessingState, error) {
	data, ok, err := s.cache.Get(ctx, stateKey(contentHash))
	if err != nil {
		log.Printf("WARN: loading state for %s: %v", shortHash(contentHash), err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	var st models.ProcessingState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("WARN: corrupt state record for %s: %v", shortHash(contentHash), err)
		return nil, nil
	}
	return &st, nil
}

// Save refreshes UpdatedAt and writes the state under its stage-agnostic
// key with the configured expiry. A failed save is a hard error: a stage
// that completed but was not persisted must not be reported as completed.
func (s *Store) Save(ctx context.Context, st *models.ProcessingState) error {
	st.UpdatedAt = s.clock().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", shortHash(st.FileHash), err)
	}
	if err := s.cache.Set(ctx, stateKey(st.FileHash), data, s.ttl); err != nil {
		return fmt.Errorf("persist state %s: %w", shortHash(st.FileHash), err)
	}
	return nil
}

// Delete removes the state record. It reports whether a record was removed;
// cache failures are logged and reported as false.
func (s *Store) Delete(ctx context.Context, contentHash string) bool {
	deleted, err := s.cache.Delete(ctx, stateKey(contentHash))
	if err != nil {
		log.Printf("WARN: deleting state for %s: %v", shortHash(contentHash), err)
		return false
	}
	return deleted
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
