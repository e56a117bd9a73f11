package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint records durable progress after each completed user batch so a
// crash mid-run resumes from the last batch boundary instead of restarting.
type Checkpoint struct {
	RunDate        string    `json:"run_date"`
	LastUserID     uuid.UUID `json:"last_user_id"`
	UsersProcessed int       `json:"users_processed"`
	UsersFailed    int       `json:"users_failed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CheckpointStore is the durable side of resumability. The Redis
// implementation degrades to a no-op when Redis is down.
type CheckpointStore interface {
	Load(ctx context.Context, runDate string) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
	Clear(ctx context.Context, runDate string) error
}

// RunLocker serializes runs per date across scheduler instances.
type RunLocker interface {
	TryLock(ctx context.Context, runDate string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, runDate string) error
}

type redisKV interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	SetIfNotExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

type RedisCheckpointStore struct {
	kv redisKV
}

func NewRedisCheckpointStore(kv redisKV) *RedisCheckpointStore {
	return &RedisCheckpointStore{kv: kv}
}

func checkpointKey(runDate string) string {
	return fmt.Sprintf("digest:checkpoint:%s", runDate)
}

func lockKey(runDate string) string {
	return fmt.Sprintf("digest:runlock:%s", runDate)
}

func (s *RedisCheckpointStore) Load(ctx context.Context, runDate string) (Checkpoint, bool, error) {
	var cp Checkpoint
	found, err := s.kv.GetJSON(ctx, checkpointKey(runDate), &cp)
	if err != nil || !found {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (s *RedisCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	// A checkpoint older than two days is useless; let it expire.
	return s.kv.SetJSON(ctx, checkpointKey(cp.RunDate), cp, 48*time.Hour)
}

func (s *RedisCheckpointStore) Clear(ctx context.Context, runDate string) error {
	return s.kv.Delete(ctx, checkpointKey(runDate))
}

func (s *RedisCheckpointStore) TryLock(ctx context.Context, runDate string, ttl time.Duration) (bool, error) {
	return s.kv.SetIfNotExists(ctx, lockKey(runDate), "locked", ttl)
}

func (s *RedisCheckpointStore) Unlock(ctx context.Context, runDate string) error {
	return s.kv.Delete(ctx, lockKey(runDate))
}
