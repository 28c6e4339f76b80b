package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func newTestService(t *testing.T, items ...models.Item) (Service, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	svc, err := NewService(backend, newFakeItems(items...), logger.Nop())
	require.NoError(t, err)
	return svc, backend
}

func testItem(name, price string) models.Item {
	return models.Item{
		ID:              uuid.New(),
		Name:            name,
		DefaultImageURL: "https://cdn.example.com/" + name + ".png",
		Price:           decimal.RequireFromString(price),
		Stock:           10,
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, newFakeItems(), logger.Nop())
	require.Error(t, err)
	_, err = NewService(newFakeBackend(), nil, logger.Nop())
	require.Error(t, err)
	_, err = NewService(newFakeBackend(), newFakeItems(), nil)
	require.Error(t, err)
}

func TestServiceAddValidates(t *testing.T) {
	item := testItem("pen", "1.50")
	svc, _ := newTestService(t, item)
	store := NewCookieStore("", time.Now())
	ctx := context.Background()

	_, err := svc.Add(ctx, store, MutationInput{ItemID: item.ID, Count: 0, Selected: true})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Add(ctx, store, MutationInput{ItemID: uuid.Nil, Count: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, store, MutationInput{ItemID: uuid.New(), Count: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.Zero(t, store.Len())
	require.False(t, store.Dirty())
}

func TestServiceAddReturnsAccumulatedCount(t *testing.T) {
	item := testItem("pen", "1.50")
	svc, _ := newTestService(t, item)
	ctx := context.Background()
	redisStore, err := svc.UserStore(uuid.New())
	require.NoError(t, err)

	for _, store := range []Store{redisStore, NewCookieStore("", time.Now())} {
		_, err := svc.Add(ctx, store, MutationInput{ItemID: item.ID, Count: 3, Selected: true})
		require.NoError(t, err)
		entry, err := svc.Add(ctx, store, MutationInput{ItemID: item.ID, Count: 2, Selected: true})
		require.NoError(t, err)
		require.Equal(t, 5, entry.Count)
		require.True(t, entry.Selected)
	}
}

func TestServiceReadJoinsCatalogAndSkipsMissing(t *testing.T) {
	pen := testItem("pen", "1.50")
	ink := testItem("ink", "4.00")
	items := newFakeItems(pen, ink)
	svc, err := NewService(newFakeBackend(), items, logger.Nop())
	require.NoError(t, err)
	store, err := svc.UserStore(uuid.New())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Add(ctx, store, MutationInput{ItemID: pen.ID, Count: 2, Selected: true})
	require.NoError(t, err)
	_, err = svc.Add(ctx, store, MutationInput{ItemID: ink.ID, Count: 1})
	require.NoError(t, err)

	// price changes after the item was carted are reflected on read
	ink.Price = decimal.RequireFromString("3.25")
	items.items[ink.ID] = ink
	delete(items.items, pen.ID)

	lines, err := svc.Read(ctx, store)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, ink.ID, lines[0].ItemID)
	require.Equal(t, "3.25", lines[0].Price.StringFixed(2))
	require.Equal(t, 1, lines[0].Count)
	require.False(t, lines[0].Selected)
	require.Equal(t, ink.DefaultImageURL, lines[0].DefaultImageURL)
}

func TestServiceReadEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)
	lines, err := svc.Read(context.Background(), NewCookieStore("", time.Now()))
	require.NoError(t, err)
	require.NotNil(t, lines)
	require.Empty(t, lines)
}

func TestServiceSurfacesBackendFailures(t *testing.T) {
	item := testItem("pen", "1.50")
	svc, backend := newTestService(t, item)
	store, err := svc.UserStore(uuid.New())
	require.NoError(t, err)
	backend.err = errors.New("connection refused")

	_, err = svc.Add(context.Background(), store, MutationInput{ItemID: item.ID, Count: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	_, err = svc.Read(context.Background(), store)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestServiceUserStoreRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UserStore(uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestMergeAnonymousWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	auth, err := svc.UserStore(uuid.New())
	require.NoError(t, err)
	shared, onlyAuth, onlyAnon := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, auth.Add(ctx, shared, 5, true))
	require.NoError(t, auth.Add(ctx, onlyAuth, 1, true))

	anon := NewCookieStore("", time.Now())
	require.NoError(t, anon.Add(ctx, shared, 2, false))
	require.NoError(t, anon.Add(ctx, onlyAnon, 3, true))

	merged, err := svc.Merge(ctx, anon, auth)
	require.NoError(t, err)
	require.Equal(t, 2, merged)
	require.Zero(t, anon.Len())

	got := map[uuid.UUID]Entry{}
	entries, err := auth.Entries(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		got[e.ItemID] = e
	}
	require.Equal(t, Entry{ItemID: shared, Count: 2, Selected: false}, got[shared])
	require.Equal(t, Entry{ItemID: onlyAuth, Count: 1, Selected: true}, got[onlyAuth])
	require.Equal(t, Entry{ItemID: onlyAnon, Count: 3, Selected: true}, got[onlyAnon])
}

func TestMergeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	auth, err := svc.UserStore(uuid.New())
	require.NoError(t, err)

	anon := NewCookieStore("", time.Now())
	require.NoError(t, anon.Add(ctx, uuid.New(), 2, true))
	_, err = svc.Merge(ctx, anon, auth)
	require.NoError(t, err)
	before, err := auth.Entries(ctx)
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, anon, auth)
	require.NoError(t, err)
	require.Zero(t, merged)
	merged, err = svc.Merge(ctx, nil, auth)
	require.NoError(t, err)
	require.Zero(t, merged)

	after, err := auth.Entries(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
