package ruteros

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotMiss indicates no cached evaluation for the route.
var ErrSnapshotMiss = errors.New("no evaluation snapshot")

const snapshotTTL = 10 * time.Minute

// SnapshotStore caches reconciliation verdicts in redis so dashboards and
// the mobile app can poll cheaply between worker refreshes.
type SnapshotStore struct {
	rdb *redis.Client
}

// NewSnapshotStore returns a redis-backed snapshot store.
func NewSnapshotStore(rdb *redis.Client) *SnapshotStore {
	return &SnapshotStore{rdb: rdb}
}

func snapshotKey(ruteroID int64) string {
	return fmt.Sprintf("rutero:evaluation:%d", ruteroID)
}

// Save stores the evaluation with a fixed TTL.
func (s *SnapshotStore) Save(ctx context.Context, ev Evaluation) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, snapshotKey(ev.RuteroID), payload, snapshotTTL).Err()
}

// Get returns the cached evaluation, or ErrSnapshotMiss when absent or
// expired.
func (s *SnapshotStore) Get(ctx context.Context, ruteroID int64) (*Evaluation, error) {
	payload, err := s.rdb.Get(ctx, snapshotKey(ruteroID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMiss
		}
		return nil, err
	}
	var ev Evaluation
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Invalidate drops the cached evaluation after a state change.
func (s *SnapshotStore) Invalidate(ctx context.Context, ruteroID int64) error {
	return s.rdb.Del(ctx, snapshotKey(ruteroID)).Err()
}
