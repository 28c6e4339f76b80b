package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubAddresses struct {
	created []address.DTO
	owner   uuid.UUID
}

func (s *stubAddresses) Create(_ context.Context, userID uuid.UUID, req address.CreateRequest) (*address.DTO, error) {
	s.owner = userID
	dto := address.DTO{ID: uuid.New(), Receiver: req.Receiver, City: req.City}
	s.created = append(s.created, dto)
	return &dto, nil
}

func (s *stubAddresses) List(_ context.Context, userID uuid.UUID) ([]address.DTO, error) {
	s.owner = userID
	return s.created, nil
}

func (s *stubAddresses) GetOwned(context.Context, uuid.UUID, uuid.UUID) (*models.Address, error) {
	return nil, nil
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestAddressCreateAndList(t *testing.T) {
	svc := &stubAddresses{}
	userID := uuid.New()

	body := `{"receiver":"Ada","province":"CA","city":"Oakland","district":"Downtown","place":"1 Main St","mobile":"555-0100"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()
	AddressCreate(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, userID, svc.owner)

	req = withUser(httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil), userID)
	resp = httptest.NewRecorder()
	AddressList(svc, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"receiver":"Ada"`)
}

func TestAddressCreateMissingFields(t *testing.T) {
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(`{"receiver":"Ada"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AddressCreate(&stubAddresses{}, logger.Nop()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAddressListEmptyIsArray(t *testing.T) {
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil), uuid.New())
	resp := httptest.NewRecorder()
	AddressList(&stubAddresses{}, logger.Nop()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"addresses":[]`)
}

func TestAddressRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil)
	resp := httptest.NewRecorder()
	AddressList(&stubAddresses{}, logger.Nop()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
