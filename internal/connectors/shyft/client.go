package shyft

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/cwoolley/solmcp/internal/apiclient"
)

const (
	poolsByTokenPath     = "/v0/pools/get_by_token"
	liquidityDetailsPath = "/v0/pools/get_liquidity_details"

	// Only the first page is ever requested.
	page    = "1"
	perPage = "10"
)

// APIClient implements PoolClient against the Shyft DeFi API.
type APIClient struct {
	http *apiclient.Client
}

// NewAPIClient creates a Shyft client sending apiKey in the x-api-key header.
func NewAPIClient(baseURL, apiKey string, httpClient *http.Client, log zerolog.Logger) *APIClient {
	return &APIClient{
		http: apiclient.New(baseURL, httpClient,
			apiclient.WithHeader("x-api-key", apiKey),
			apiclient.WithLogger(log),
		),
	}
}

func (c *APIClient) PoolsByToken(ctx context.Context, token string) (gjson.Result, error) {
	return c.http.Get(ctx, poolsByTokenPath, url.Values{
		"token":    {token},
		"page":     {page},
		"per_page": {perPage},
	})
}

func (c *APIClient) LiquidityDetails(ctx context.Context, address string) (gjson.Result, error) {
	return c.http.Get(ctx, liquidityDetailsPath, url.Values{"address": {address}})
}
