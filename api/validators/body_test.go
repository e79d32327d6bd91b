package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

type stopBody struct {
	Address string `json:"address" validate:"required"`
}

type runBody struct {
	Stops []stopBody `json:"stops" validate:"min=1,dive"`
}

func decodeString(raw string, dest any) *pkgerrors.Error {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
	return pkgerrors.As(DecodeJSONBody(req, dest))
}

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	cases := map[string]struct {
		raw     string
		message string
	}{
		"empty":    {raw: "", message: "request body required"},
		"trailing": {raw: `{"quantity":1,"price":"1"}{"quantity":2}`, message: "request body must hold a single JSON object"},
		"too large": {
			raw:     `{"quantity":1,"price":"` + strings.Repeat("9", maxBodyBytes) + `"}`,
			message: "request body exceeds 1048576 bytes",
		},
		"syntax": {raw: `{"quantity":`, message: "invalid request body"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var body joinBody
			err := decodeString(tc.raw, &body)
			require.NotNil(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, err.Code())
			assert.Equal(t, tc.message, err.Message())
		})
	}
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	var body runBody
	err := decodeString(`{"stops":[{"address":"1 Main"},{"address":""}]}`, &body)
	require.NotNil(t, err)
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"stops[1].address": "is required"}, details)

	err = decodeString(`{"stops":[]}`, &body)
	require.NotNil(t, err)
	assert.Equal(t, "must be at least 1", err.Details().(map[string]string)["stops"])
}

func TestDecodeJSONBodyAcceptsValidBody(t *testing.T) {
	var body runBody
	require.Nil(t, decodeString(`{"stops":[{"address":"1 Main"}]}`, &body))
	assert.Len(t, body.Stops, 1)
}
