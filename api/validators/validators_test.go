package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type addItemBody struct {
	SKUID string `json:"sku_id" validate:"required,uuid"`
	Count int    `json:"count" validate:"gte=1,lte=99"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{"sku_id":"x","count":1,"extra":true}`))
	var body addItemBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{"sku_id":"not-a-uuid","count":0}`))
	var body addItemBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid uuid", details["sku_id"])
	require.Equal(t, "must be greater than or equal to 1", details["count"])
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{"sku_id":"6a1b6f5c-1f0e-4c36-9a43-6c2b9d5a1e10","count":3}`))
	var body addItemBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, 3, body.Count)
}

func TestSanitizeStringKeepsRunesIntact(t *testing.T) {
	require.Equal(t, "好评好", SanitizeString("  好评好评  ", 3))
	require.Equal(t, "fine", SanitizeString(" fine ", 0))
	require.Equal(t, "ab", SanitizeString("ab", 10))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/orders?page=3&size=abc&limit=500", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 3, page)

	missing, err := ParseQueryInt(req, "offset", 7, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 7, missing)

	_, err = ParseQueryInt(req, "size", 1, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "limit", 1, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	_, err := ParseUUIDParam("nope", "orderId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	id, err := ParseUUIDParam(" 6a1b6f5c-1f0e-4c36-9a43-6c2b9d5a1e10 ", "orderId")
	require.NoError(t, err)
	require.Equal(t, "6a1b6f5c-1f0e-4c36-9a43-6c2b9d5a1e10", id.String())
}
