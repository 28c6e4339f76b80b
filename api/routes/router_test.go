package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "sf:idempotency:" + scope + ":" + id }
func (m *memoryRedis) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

func (stubSessions) Rotate(context.Context, string, uuid.UUID, string) (string, string, error) {
	return "", "", nil
}

func (stubSessions) Revoke(context.Context, string) error { return nil }

type stubCarts struct {
	cart.Service
}

func (stubCarts) Read(context.Context, cart.Store) ([]cart.Line, error) {
	return []cart.Line{}, nil
}

type stubCheckout struct {
	settlementCalls int
	placeCalls      int
}

func (s *stubCheckout) Settlement(context.Context, uuid.UUID) (*checkout.Settlement, error) {
	s.settlementCalls++
	return &checkout.Settlement{Freight: decimal.NewFromInt(10)}, nil
}

func (s *stubCheckout) PlaceOrder(context.Context, uuid.UUID, checkout.PlaceOrderInput) (*orders.OrderDTO, error) {
	s.placeCalls++
	return &orders.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusUnpaid}, nil
}

type stubOrders struct {
	shipped uuid.UUID
}

func (s *stubOrders) List(context.Context, uuid.UUID, pagination.Params) (pagination.Page[orders.OrderDTO], error) {
	return pagination.Page[orders.OrderDTO]{Items: []orders.OrderDTO{}}, nil
}

func (s *stubOrders) Get(_ context.Context, _, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrders) Ship(_ context.Context, _, orderID uuid.UUID) (*orders.OrderDTO, error) {
	s.shipped = orderID
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusUnreceived}, nil
}

func (s *stubOrders) ConfirmReceipt(_ context.Context, _, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		Cart: config.CartConfig{CookieName: "cart", CookieTTL: time.Hour},
	}
}

type testRouter struct {
	http.Handler
	checkout *stubCheckout
	orders   *stubOrders
}

func newTestRouter(cfg *config.Config, metrics http.Handler) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	co := &stubCheckout{}
	ord := &stubOrders{}
	h := NewRouter(cfg, logg, Dependencies{
		Redis:    newMemoryRedis(),
		Sessions: stubSessions{},
		Metrics:  metrics,
		Carts:    stubCarts{},
		Checkout: co,
		Orders:   ord,
	})
	return testRouter{Handler: h, checkout: co, orders: ord}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHealthReadyPingsRedis(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"redis":"up"`)
}

func TestOrdersRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAnonymousCartIsReachable(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestSettlementIsNotAnOrderID(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/settlement", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := serve(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, router.checkout.settlementCalls)
}

func TestPlaceOrderRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	token := buildToken(t, cfg, enums.UserRoleCustomer)
	body := fmt.Sprintf(`{"address_id":%q,"pay_method":"CARD"}`, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := serve(router, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "k-1")
	first := serve(router, req)
	require.Equal(t, http.StatusCreated, first.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "k-1")
	replay := serve(router, req)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, router.checkout.placeCalls)
}

func TestAdminShipRequiresStaff(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	orderID := uuid.New()
	path := "/api/v1/admin/orders/" + orderID.String() + "/ship"

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	req.Header.Set("Idempotency-Key", "ship-1")
	resp := serve(router, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleStaff))
	req.Header.Set("Idempotency-Key", "ship-2")
	resp = serve(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, orderID, router.orders.shipped)
}

func TestMetricsMountedOnlyWhenProvided(t *testing.T) {
	resp := serve(newTestRouter(testConfig(), nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	resp = serve(newTestRouter(testConfig(), metrics), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
