package storage

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutAndSignedURL(t *testing.T) {
	l := NewLocal(t.TempDir(), "https://assets.example.com", []byte("secret"))

	err := l.Put(context.Background(), "user-1/temp-1/identification-1.jpg", []byte("fake-jpeg"), "image/jpeg")
	require.NoError(t, err)

	url, err := l.SignedURL(context.Background(), "user-1/temp-1/identification-1.jpg", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "https://assets.example.com/")
	assert.Contains(t, url, "sig=")
}

func TestLocal_VerifySignedURL_RoundTrips(t *testing.T) {
	l := NewLocal(t.TempDir(), "https://assets.example.com", []byte("secret"))
	key := "user-1/temp-1/identification-1.jpg"

	expiresAt := time.Now().Add(time.Hour).Unix()
	sig := l.sign(key, expiresAt)

	gotKey, ok := l.VerifySignedURL(base64.RawURLEncoding.EncodeToString([]byte(key)), expiresAt, sig)
	require.True(t, ok)
	assert.Equal(t, key, gotKey)
}

func TestLocal_VerifySignedURL_RejectsExpired(t *testing.T) {
	l := NewLocal(t.TempDir(), "https://assets.example.com", []byte("secret"))
	key := "user-1/temp-1/identification-1.jpg"

	expiresAt := time.Now().Add(-time.Hour).Unix()
	sig := l.sign(key, expiresAt)

	_, ok := l.VerifySignedURL(base64.RawURLEncoding.EncodeToString([]byte(key)), expiresAt, sig)
	assert.False(t, ok)
}

func TestLocal_VerifySignedURL_RejectsTamperedSignature(t *testing.T) {
	l := NewLocal(t.TempDir(), "https://assets.example.com", []byte("secret"))
	key := "user-1/temp-1/identification-1.jpg"
	expiresAt := time.Now().Add(time.Hour).Unix()

	_, ok := l.VerifySignedURL(base64.RawURLEncoding.EncodeToString([]byte(key)), expiresAt, "deadbeef")
	assert.False(t, ok)
}
