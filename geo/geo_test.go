package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"city": "Amsterdam", "ip": "203.0.113.7"}`))
	}))
	defer server.Close()

	resolver := NewResolver(Config{Endpoint: server.URL, Token: "secret"})
	location := resolver.Lookup(context.Background())

	require.NotNil(t, location.City)
	assert.Equal("Amsterdam", *location.City)
	require.NotNil(t, location.IP)
	assert.Equal("203.0.113.7", *location.IP)
	require.NotNil(t, location.Source)
	assert.Equal("ipinfo", *location.Source)
}

func TestLookupFailureIsAllNull(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resolver := NewResolver(Config{Endpoint: server.URL})
	location := resolver.Lookup(context.Background())

	assert.Nil(location.City)
	assert.Nil(location.Source)
	assert.Nil(location.IP)
}

func TestLookupUnreachableIsAllNull(t *testing.T) {
	resolver := NewResolver(Config{Endpoint: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	location := resolver.Lookup(context.Background())

	assert.Nil(t, location.City)
}
