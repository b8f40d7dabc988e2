package shyft

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_PoolsByToken_SendsFixedPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/pools/get_by_token", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "TOKEN", q.Get("token"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "10", q.Get("per_page"))
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"result":{"dexes":{}}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "key-1", srv.Client(), zerolog.Nop())
	got, err := c.PoolsByToken(context.Background(), "TOKEN")
	require.NoError(t, err)
	assert.True(t, got.Get("result.dexes").IsObject())
}

func TestAPIClient_LiquidityDetails_SendsAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/pools/get_liquidity_details", r.URL.Path)
		assert.Equal(t, "POOL", r.URL.Query().Get("address"))
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"result":{"address":"POOL"}}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "key-1", srv.Client(), zerolog.Nop())
	got, err := c.LiquidityDetails(context.Background(), "POOL")
	require.NoError(t, err)
	assert.Equal(t, "POOL", got.Get("result.address").String())
}

func TestAPIClient_PropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "bad", srv.Client(), zerolog.Nop())
	_, err := c.PoolsByToken(context.Background(), "TOKEN")
	assert.ErrorContains(t, err, "403")
}
