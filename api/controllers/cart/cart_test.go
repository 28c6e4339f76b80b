package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var testCartConfig = config.CartConfig{CookieName: "cart", CookieTTL: 14 * 24 * time.Hour}

// stubService applies mutations straight to the store so cookie round trips are real.
type stubService struct {
	userStoreCalls int
	userStoreErr   error
	known          map[uuid.UUID]bool
}

func (s *stubService) UserStore(uuid.UUID) (*cartsvc.RedisStore, error) {
	s.userStoreCalls++
	return nil, s.userStoreErr
}

func (s *stubService) check(id uuid.UUID) error {
	if s.known != nil && !s.known[id] {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

func (s *stubService) Add(ctx context.Context, store cartsvc.Store, in cartsvc.MutationInput) (cartsvc.Entry, error) {
	if err := s.check(in.ItemID); err != nil {
		return cartsvc.Entry{}, err
	}
	return cartsvc.Entry{ItemID: in.ItemID, Count: in.Count, Selected: in.Selected}, store.Add(ctx, in.ItemID, in.Count, in.Selected)
}

func (s *stubService) Update(ctx context.Context, store cartsvc.Store, in cartsvc.MutationInput) (cartsvc.Entry, error) {
	if err := s.check(in.ItemID); err != nil {
		return cartsvc.Entry{}, err
	}
	return cartsvc.Entry{ItemID: in.ItemID, Count: in.Count, Selected: in.Selected}, store.Update(ctx, in.ItemID, in.Count, in.Selected)
}

func (s *stubService) Remove(ctx context.Context, store cartsvc.Store, itemID uuid.UUID) error {
	return store.Remove(ctx, itemID)
}

func (s *stubService) SelectAll(ctx context.Context, store cartsvc.Store, selected bool) error {
	return store.SetAllSelected(ctx, selected)
}

func (s *stubService) Read(ctx context.Context, store cartsvc.Store) ([]cartsvc.Line, error) {
	entries, err := store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]cartsvc.Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, cartsvc.Line{ItemID: e.ItemID, Name: "item", Price: decimal.RequireFromString("10.00"), Count: e.Count, Selected: e.Selected})
	}
	return lines, nil
}

func (s *stubService) Merge(context.Context, *cartsvc.CookieStore, cartsvc.Store) (int, error) {
	return 0, nil
}

func cartCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == "cart" {
			return c
		}
	}
	return nil
}

func TestAnonymousAddSetsCookie(t *testing.T) {
	itemID := uuid.New()
	handler := CartAdd(&stubService{}, testCartConfig, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id":"`+itemID.String()+`","count":2}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	cookie := cartCookie(t, resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(testCartConfig.CookieTTL.Seconds()), cookie.MaxAge)

	entries := cartsvc.DecodeCookie(cookie.Value, time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, cartsvc.Entry{ItemID: itemID, Count: 2, Selected: true}, entries[0])
}

func TestAnonymousAddAccumulatesAcrossRequests(t *testing.T) {
	itemID := uuid.New()
	handler := CartAdd(&stubService{}, testCartConfig, nil)

	var value string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id":"`+itemID.String()+`","count":3}`))
		if value != "" {
			req.AddCookie(&http.Cookie{Name: "cart", Value: value})
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		value = cartCookie(t, resp).Value
	}

	entries := cartsvc.DecodeCookie(value, time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, 6, entries[0].Count)
}

func TestAnonymousUpdateOverwrites(t *testing.T) {
	itemID := uuid.New()
	seed, err := cartsvc.EncodeCookie([]cartsvc.Entry{{ItemID: itemID, Count: 5, Selected: true}}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(`{"id":"`+itemID.String()+`","count":1,"selected":false}`))
	req.AddCookie(&http.Cookie{Name: "cart", Value: seed})
	resp := httptest.NewRecorder()
	CartUpdate(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	entries := cartsvc.DecodeCookie(cartCookie(t, resp).Value, time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Count)
	assert.False(t, entries[0].Selected)
}

func TestAnonymousRemoveLastEntryExpiresCookie(t *testing.T) {
	itemID := uuid.New()
	seed, err := cartsvc.EncodeCookie([]cartsvc.Entry{{ItemID: itemID, Count: 1, Selected: true}}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", strings.NewReader(`{"id":"`+itemID.String()+`"}`))
	req.AddCookie(&http.Cookie{Name: "cart", Value: seed})
	resp := httptest.NewRecorder()
	CartRemove(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	cookie := cartCookie(t, resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestAnonymousFetchReadsCookieWithoutRewriting(t *testing.T) {
	itemID := uuid.New()
	seed, err := cartsvc.EncodeCookie([]cartsvc.Entry{{ItemID: itemID, Count: 4, Selected: true}}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: "cart", Value: seed})
	resp := httptest.NewRecorder()
	CartFetch(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, cartCookie(t, resp))

	var envelope struct {
		Data []cartsvc.Line `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, 4, envelope.Data[0].Count)
}

func TestSelectAllAnonymous(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	seed, err := cartsvc.EncodeCookie([]cartsvc.Entry{
		{ItemID: a, Count: 1, Selected: true},
		{ItemID: b, Count: 1, Selected: true},
	}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/selection", strings.NewReader(`{"selected":false}`))
	req.AddCookie(&http.Cookie{Name: "cart", Value: seed})
	resp := httptest.NewRecorder()
	CartSelectAll(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	for _, entry := range cartsvc.DecodeCookie(cartCookie(t, resp).Value, time.Now()) {
		assert.False(t, entry.Selected)
	}
}

func TestSelectAllRequiresFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/selection", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CartSelectAll(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAddRejectsZeroCount(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id":"`+uuid.NewString()+`","count":0}`))
	resp := httptest.NewRecorder()
	CartAdd(&stubService{}, testCartConfig, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, cartCookie(t, resp))
}

func TestAddUnknownItemLeavesCookieAlone(t *testing.T) {
	svc := &stubService{known: map[uuid.UUID]bool{}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"id":"`+uuid.NewString()+`","count":1}`))
	resp := httptest.NewRecorder()
	CartAdd(svc, testCartConfig, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Nil(t, cartCookie(t, resp))
}

func TestAuthenticatedRequestUsesUserStore(t *testing.T) {
	svc := &stubService{userStoreErr: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	CartFetch(svc, testCartConfig, nil).ServeHTTP(resp, req)

	assert.Equal(t, 1, svc.userStoreCalls)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
