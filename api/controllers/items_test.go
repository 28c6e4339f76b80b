package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/comments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubComments struct {
	comments.Service
	list []comments.ItemComment
	item uuid.UUID
}

func (s *stubComments) ItemComments(_ context.Context, itemID uuid.UUID) ([]comments.ItemComment, error) {
	s.item = itemID
	return s.list, nil
}

func itemRequest(itemID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/"+itemID+"/comments", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("itemId", itemID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestItemComments(t *testing.T) {
	itemID := uuid.New()
	svc := &stubComments{list: []comments.ItemComment{{Username: "ada", Comment: "great", Score: 5, CreatedAt: time.Now()}}}

	resp := httptest.NewRecorder()
	ItemComments(svc, logger.Nop()).ServeHTTP(resp, itemRequest(itemID.String()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, itemID, svc.item)
	assert.Contains(t, resp.Body.String(), `"comment":"great"`)
}

func TestItemCommentsBadID(t *testing.T) {
	resp := httptest.NewRecorder()
	ItemComments(&stubComments{}, logger.Nop()).ServeHTTP(resp, itemRequest("nope"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
