package solflare

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/cwoolley/solmcp/internal/apiclient"
)

// ChainID is the Solana mainnet id in the unified token list.
const ChainID = 101

const (
	searchPath = "/search"
	mintsPath  = "/mints"

	searchLimit = "20"
)

// APIClient implements TokenClient against the Solflare token list API.
type APIClient struct {
	http *apiclient.Client
}

// NewAPIClient creates a Solflare client. The API needs no credentials.
func NewAPIClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *APIClient {
	return &APIClient{http: apiclient.New(baseURL, httpClient, apiclient.WithLogger(log))}
}

func (c *APIClient) SearchTokens(ctx context.Context, query string) (gjson.Result, error) {
	return c.http.Get(ctx, searchPath, url.Values{
		"query":   {query},
		"chainId": {strconv.Itoa(ChainID)},
		"start":   {"0"},
		"limit":   {searchLimit},
	})
}

func (c *APIClient) Mints(ctx context.Context, addresses []string) (gjson.Result, error) {
	body := struct {
		Addresses []string `json:"addresses"`
	}{Addresses: addresses}
	return c.http.Post(ctx, mintsPath, url.Values{"chainId": {strconv.Itoa(ChainID)}}, body)
}
