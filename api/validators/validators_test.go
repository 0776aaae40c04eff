package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleBody struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"count":0}`))
	var body sampleBody
	err := DecodeJSONBody(r, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be greater than or equal to 1", details["count"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","count":1,"extra":true}`))
	var body sampleBody
	err := DecodeJSONBody(r, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseQueryIntBounds(t *testing.T) {
	r := httptest.NewRequest("GET", "/?wait_ms=50", nil)
	v, err := ParseQueryInt(r, "wait_ms", 10, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	r = httptest.NewRequest("GET", "/", nil)
	v, err = ParseQueryInt(r, "wait_ms", 10, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	r = httptest.NewRequest("GET", "/?wait_ms=500", nil)
	_, err = ParseQueryInt(r, "wait_ms", 10, 0, 100)
	require.Error(t, err)
}

func TestPathID(t *testing.T) {
	id, err := PathID("  F1 ", "id")
	require.NoError(t, err)
	assert.Equal(t, "F1", id)

	_, err = PathID(" ", "id")
	require.Error(t, err)
	_, err = PathID(strings.Repeat("x", 200), "id")
	require.Error(t, err)
}
