package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

type movementBody struct {
	WarehouseID string `json:"warehouse_id" validate:"required,uuid"`
	Delta       int    `json:"delta" validate:"ne=0"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"warehouse_id":"nope","delta":0}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["warehouse_id"])
	assert.Equal(t, "must not be 0", details["delta"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"warehouse_id":"`+"3f1c2d9e-8a0b-4c6e-9f7a-1b2c3d4e5f60"+`","delta":2,"extra":true}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSanitizeOptional(t *testing.T) {
	blank := "   "
	long := "  abcdef  "
	assert.Nil(t, SanitizeOptional(nil, 10))
	assert.Nil(t, SanitizeOptional(&blank, 10))
	assert.Equal(t, "abc", *SanitizeOptional(&long, 3))

	accented := " caf\u00e9 cr\u00e8me\x00 "
	assert.Equal(t, "caf\u00e9", *SanitizeOptional(&accented, 4))
	multiline := "line one\nline two\x07"
	assert.Equal(t, "line one\nline two", *SanitizeOptional(&multiline, 0))
}

type orderBody struct {
	Currency string      `json:"currency" validate:"omitempty,currency"`
	Lines    []orderLine `json:"lines" validate:"required,min=1,dive"`
}

type orderLine struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyNamesNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"currency":"euro","lines":[{"quantity":1},{"quantity":0}]}`))
	var body orderBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["lines[1].quantity"])
	assert.Equal(t, "must be a three-letter ISO 4217 code", details["currency"])
}

func TestDecodeJSONBodyRejectsMalformedEnvelopes(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"trailing": `{"lines":[{"quantity":1}]} {"lines":[]}`,
		"type":     `{"lines":[{"quantity":"two"}]}`,
		"oversize": `{"currency":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
			var body orderBody
			assert.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
		})
	}
}
