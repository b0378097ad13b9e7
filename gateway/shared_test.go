package gateway

import (
	"net/http"
	"testing"

	"github.com/greenleaf-ai/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"a\": 1}\n```\nThanks."
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1}`, string(raw))
}

func TestExtractJSON_BareObject(t *testing.T) {
	raw, ok := ExtractJSON(`{"a": 1}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1}`, string(raw))
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, ok := ExtractJSON("I could not identify anything in this image.")
	assert.False(t, ok)
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status    int
		msg       string
		wantCode  types.ErrorCode
		wantRetry bool
	}{
		{http.StatusUnauthorized, "", types.ErrAuthentication, false},
		{http.StatusForbidden, "", types.ErrAuthentication, false},
		{http.StatusTooManyRequests, "", types.ErrRateLimited, true},
		{http.StatusBadRequest, "bad input", types.ErrInvalidRequest, false},
		{http.StatusBadRequest, "out of credit", types.ErrQuotaExceeded, false},
		{http.StatusNotFound, "", types.ErrModelNotFound, false},
		{http.StatusRequestEntityTooLarge, "", types.ErrContextTooLong, false},
		{http.StatusServiceUnavailable, "", types.ErrUpstreamError, true},
		{http.StatusInternalServerError, "", types.ErrUpstreamError, true},
	}
	for _, c := range cases {
		err := ClassifyHTTPStatus(c.status, c.msg, "test-provider")
		assert.Equal(t, c.wantCode, err.Code, "status %d", c.status)
		assert.Equal(t, c.wantRetry, err.Retryable, "status %d", c.status)
		assert.Equal(t, "test-provider", err.Provider)
	}
}

func TestStripDataURIPrefix(t *testing.T) {
	body, mime := StripDataURIPrefix("data:image/jpeg;base64,Zm9v")
	assert.Equal(t, "Zm9v", body)
	assert.Equal(t, "image/jpeg", mime)

	body, mime = StripDataURIPrefix("Zm9v")
	assert.Equal(t, "Zm9v", body)
	assert.Equal(t, "", mime)
}

func TestEstimateDecodedSize(t *testing.T) {
	assert.Equal(t, 3, EstimateDecodedSize("Zm9v"))
	assert.Equal(t, 2, EstimateDecodedSize("Zm8="))
}
