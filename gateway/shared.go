// Package gateway holds the small set of helpers every vendor adapter
// (anthropic, openai, plantid, vision, embedding) shares: HTTP status
// classification, data-URI handling, and base64 size estimation. Each
// vendor's mapXError function used to duplicate this status-code table;
// it is collected here once and reused by every gateway.
package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/greenleaf-ai/core/types"
)

// ClassifyHTTPStatus maps an HTTP status code to a types.Error, picking a
// retryable flag appropriate for the status class. Vendor-specific
// mappers call this first and only override the few cases where their
// provider's status codes carry vendor-specific meaning (e.g. Claude's
// 529 "overloaded").
func ClassifyHTTPStatus(status int, msg, provider string) *types.Error {
	code := types.ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrAuthentication
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusBadRequest:
		code = types.ErrInvalidRequest
		if strings.Contains(msg, "credit") || strings.Contains(msg, "quota") {
			code = types.ErrQuotaExceeded
		}
	case http.StatusNotFound:
		code = types.ErrModelNotFound
	case http.StatusRequestEntityTooLarge:
		code = types.ErrContextTooLong
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		code = types.ErrUpstreamError
		retryable = true
	}

	return types.NewError(code, msg).WithHTTPStatus(status).WithRetryable(retryable).WithProvider(provider)
}

// StripDataURIPrefix removes a leading "data:<mime>;base64," prefix from an
// image payload, returning the prefix-free base64 body and the detected
// mime type ("" if the input carried no data-URI prefix at all).
func StripDataURIPrefix(s string) (body string, mime string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return s, ""
	}
	header := s[len("data:"):comma]
	semi := strings.IndexByte(header, ';')
	if semi >= 0 {
		mime = header[:semi]
	} else {
		mime = header
	}
	return s[comma+1:], mime
}

// EstimateDecodedSize returns the approximate decoded byte size of a
// base64 string, used to reject oversize uploads before spending a round
// trip to a vendor that would reject them anyway.
func EstimateDecodedSize(b64 string) int {
	n := len(b64)
	padding := 0
	for i := n - 1; i >= 0 && i > n-3 && b64[i] == '='; i-- {
		padding++
	}
	return base64.StdEncoding.DecodedLen(n) - padding
}

var fencedJSONObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var bareJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls the first JSON object out of a free-form model reply,
// tolerating a ```json fence wrapper around it. It never errors: a reply
// with no parseable object yields ok=false so the caller can fall back to
// a sentinel result instead of failing the whole request.
func ExtractJSON(text string) (raw json.RawMessage, ok bool) {
	if m := fencedJSONObject.FindStringSubmatch(text); len(m) == 2 {
		return json.RawMessage(m[1]), true
	}
	if m := bareJSONObject.FindString(text); m != "" {
		return json.RawMessage(m), true
	}
	return nil, false
}
