package cart

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// redisBackend is the subset of pkg/redis used by the authenticated cart.
type redisBackend interface {
	CartKey(userID string) string
	CartSelectionKey(userID string) string
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HSet(ctx context.Context, key, field string, value any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// RedisStore keeps an authenticated user's cart in a hash of item id to count
// plus a set of selected item ids. The two keys are written independently; a
// concurrent writer on another device simply wins.
type RedisStore struct {
	backend      redisBackend
	countsKey    string
	selectionKey string
}

func NewRedisStore(backend redisBackend, userID uuid.UUID) (*RedisStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("redis backend required")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	owner := userID.String()
	return &RedisStore{
		backend:      backend,
		countsKey:    backend.CartKey(owner),
		selectionKey: backend.CartSelectionKey(owner),
	}, nil
}

func (s *RedisStore) Add(ctx context.Context, itemID uuid.UUID, count int, selected bool) error {
	if _, err := s.backend.HIncrBy(ctx, s.countsKey, itemID.String(), int64(count)); err != nil {
		return fmt.Errorf("increment cart count: %w", err)
	}
	return s.setSelected(ctx, selected, itemID.String())
}

func (s *RedisStore) Update(ctx context.Context, itemID uuid.UUID, count int, selected bool) error {
	if err := s.backend.HSet(ctx, s.countsKey, itemID.String(), count); err != nil {
		return fmt.Errorf("set cart count: %w", err)
	}
	return s.setSelected(ctx, selected, itemID.String())
}

func (s *RedisStore) Remove(ctx context.Context, itemID uuid.UUID) error {
	return s.RemoveItems(ctx, itemID)
}

// RemoveItems drops several entries at once; used after checkout.
func (s *RedisStore) RemoveItems(ctx context.Context, itemIDs ...uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		fields = append(fields, id.String())
	}
	if err := s.backend.HDel(ctx, s.countsKey, fields...); err != nil {
		return fmt.Errorf("delete cart entries: %w", err)
	}
	if err := s.backend.SRem(ctx, s.selectionKey, fields...); err != nil {
		return fmt.Errorf("delete cart selection: %w", err)
	}
	return nil
}

func (s *RedisStore) SetAllSelected(ctx context.Context, selected bool) error {
	counts, err := s.backend.HGetAll(ctx, s.countsKey)
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	if len(counts) == 0 {
		return nil
	}
	fields := make([]string, 0, len(counts))
	for field := range counts {
		fields = append(fields, field)
	}
	return s.setSelected(ctx, selected, fields...)
}

func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	counts, err := s.backend.HGetAll(ctx, s.countsKey)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	members, err := s.backend.SMembers(ctx, s.selectionKey)
	if err != nil {
		return nil, fmt.Errorf("read cart selection: %w", err)
	}
	selected := make(map[string]struct{}, len(members))
	for _, member := range members {
		selected[member] = struct{}{}
	}

	entries := make([]Entry, 0, len(counts))
	for field, raw := range counts {
		itemID, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil || count < 1 {
			continue
		}
		_, isSelected := selected[field]
		entries = append(entries, Entry{ItemID: itemID, Count: count, Selected: isSelected})
	}
	sortEntries(entries)
	return entries, nil
}

func (s *RedisStore) setSelected(ctx context.Context, selected bool, fields ...string) error {
	if selected {
		if err := s.backend.SAdd(ctx, s.selectionKey, fields...); err != nil {
			return fmt.Errorf("select cart entries: %w", err)
		}
		return nil
	}
	if err := s.backend.SRem(ctx, s.selectionKey, fields...); err != nil {
		return fmt.Errorf("unselect cart entries: %w", err)
	}
	return nil
}
