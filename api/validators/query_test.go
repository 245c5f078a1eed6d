package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, params)

	params, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, params.Limit)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUIDAndEnum(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?warehouse_id="+id.String()+"&status=pending&bad=nope", nil)

	got, err := ParseQueryUUID(req, "warehouse_id")
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	missing, err := ParseQueryUUID(req, "product_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryUUID(req, "bad")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	status, err := ParseQueryEnum(req, "status", enums.ParseOrderStatus)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, *status)

	_, err = ParseQueryEnum(req, "bad", enums.ParseOrderStatus)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseURLUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseURLUUID(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseURLUUID(req, "lineId")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
