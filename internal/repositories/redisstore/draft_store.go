package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

// Device draft sets idle out after this long without a write.
const defaultDraftTTL = 90 * 24 * time.Hour

// DraftStore is the device-scoped local draft store backed by Redis. Each
// device owns one hash keyed by draft id; values are whole-document JSON and
// writes are last-write-wins.
type DraftStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Option customises the store.
type Option func(*DraftStore)

// WithTTL overrides the idle expiry applied to each device's draft set.
func WithTTL(ttl time.Duration) Option {
	return func(s *DraftStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewDraftStore creates a Redis-backed local draft store.
func NewDraftStore(client redis.UniversalClient, opts ...Option) (*DraftStore, error) {
	if client == nil {
		return nil, errors.New("redisstore: redis client is required")
	}
	store := &DraftStore{client: client, ttl: defaultDraftTTL}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func deviceKey(deviceID string) string {
	return "drafts:device:" + deviceID
}

// List returns every draft saved on the device, newest first.
func (s *DraftStore) List(ctx context.Context, deviceID string) ([]domain.OrderDraft, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, errors.New("redisstore: deviceID is required")
	}

	values, err := s.client.HVals(ctx, deviceKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list drafts: %w", mapError(err))
	}

	drafts := make([]domain.OrderDraft, 0, len(values))
	for _, value := range values {
		var draft domain.OrderDraft
		if err := json.Unmarshal([]byte(value), &draft); err != nil {
			// A corrupt entry should not hide the rest of the set.
			continue
		}
		drafts = append(drafts, draft)
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].SavedAt.After(drafts[j].SavedAt)
	})
	return drafts, nil
}

// Put writes one draft, overwriting any previous copy under the same id.
func (s *DraftStore) Put(ctx context.Context, deviceID string, draft domain.OrderDraft) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.New("redisstore: deviceID is required")
	}
	if strings.TrimSpace(draft.ID) == "" {
		return errors.New("redisstore: draft id is required")
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("redisstore: encode draft: %w", err)
	}

	key := deviceKey(deviceID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, draft.ID, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: put draft: %w", mapError(err))
	}
	return nil
}

// Delete removes one draft from the device's set.
func (s *DraftStore) Delete(ctx context.Context, deviceID, draftID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.New("redisstore: deviceID is required")
	}

	removed, err := s.client.HDel(ctx, deviceKey(deviceID), draftID).Result()
	if err != nil {
		return fmt.Errorf("redisstore: delete draft: %w", mapError(err))
	}
	if removed == 0 {
		return fmt.Errorf("redisstore: delete draft %s: %w", draftID, repositories.ErrNotFound)
	}
	return nil
}

// Replace swaps the device's full draft set in one transaction. Used after a
// pull so the local view mirrors the remote store exactly.
func (s *DraftStore) Replace(ctx context.Context, deviceID string, drafts []domain.OrderDraft) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.New("redisstore: deviceID is required")
	}

	fields := make(map[string]any, len(drafts))
	for _, draft := range drafts {
		if strings.TrimSpace(draft.ID) == "" {
			continue
		}
		payload, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("redisstore: encode draft %s: %w", draft.ID, err)
		}
		fields[draft.ID] = payload
	}

	key := deviceKey(deviceID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: replace drafts: %w", mapError(err))
	}
	return nil
}

// Ping verifies the Redis connection for readiness checks.
func (s *DraftStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
}
