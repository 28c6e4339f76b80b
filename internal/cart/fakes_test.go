package cart

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeBackend struct {
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	err    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
	}
}

func (f *fakeBackend) CartKey(userID string) string          { return "sf:cart:" + userID }
func (f *fakeBackend) CartSelectionKey(userID string) string { return "sf:cart_selected:" + userID }

func (f *fakeBackend) hash(key string) map[string]string {
	if _, ok := f.hashes[key]; !ok {
		f.hashes[key] = map[string]string{}
	}
	return f.hashes[key]
}

func (f *fakeBackend) set(key string) map[string]struct{} {
	if _, ok := f.sets[key]; !ok {
		f.sets[key] = map[string]struct{}{}
	}
	return f.sets[key]
}

func (f *fakeBackend) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	h := f.hash(key)
	current, _ := strconv.ParseInt(h[field], 10, 64)
	current += delta
	h[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (f *fakeBackend) HSet(_ context.Context, key, field string, value any) error {
	if f.err != nil {
		return f.err
	}
	switch v := value.(type) {
	case int:
		f.hash(key)[field] = strconv.Itoa(v)
	case string:
		f.hash(key)[field] = v
	default:
		return errors.New("unsupported value")
	}
	return nil
}

func (f *fakeBackend) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) HDel(_ context.Context, key string, fields ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, field := range fields {
		delete(f.hash(key), field)
	}
	return nil
}

func (f *fakeBackend) SAdd(_ context.Context, key string, members ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range members {
		f.set(key)[m] = struct{}{}
	}
	return nil
}

func (f *fakeBackend) SRem(_ context.Context, key string, members ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range members {
		delete(f.set(key), m)
	}
	return nil
}

func (f *fakeBackend) SMembers(_ context.Context, key string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []string{}
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

type fakeItems struct {
	items map[uuid.UUID]models.Item
}

func newFakeItems(items ...models.Item) *fakeItems {
	f := &fakeItems{items: map[uuid.UUID]models.Item{}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeItems) FindByID(_ context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return &item, nil
}

func (f *fakeItems) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := map[uuid.UUID]models.Item{}
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}
