// Package solflare looks up Solana token metadata through the Solflare
// unified token list API.
package solflare

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cwoolley/solmcp/internal/connectors"
)

const name = "solflare"

// detailFields are the token fields kept by Fetch.
var detailFields = []string{"address", "name", "symbol", "decimals", "logoURI"}

// TokenClient abstracts the Solflare API for testability.
type TokenClient interface {
	SearchTokens(ctx context.Context, query string) (gjson.Result, error)
	Mints(ctx context.Context, addresses []string) (gjson.Result, error)
}

// Connector implements connectors.Connector for token metadata.
type Connector struct {
	client TokenClient
}

// NewConnector creates a token connector with the given client.
func NewConnector(client TokenClient) *Connector {
	return &Connector{client: client}
}

func (c *Connector) Name() string {
	return name
}

// Search finds tokens whose name or symbol matches query.
func (c *Connector) Search(ctx context.Context, query string) ([]connectors.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fail("search", connectors.ErrEmptyQuery)
	}

	resp, err := c.client.SearchTokens(ctx, query)
	if err != nil {
		return nil, fail("search", err)
	}

	tokens, ok := tokenList(resp)
	if !ok {
		return nil, fail("search", fmt.Errorf("%w: missing content", connectors.ErrUnexpectedShape))
	}

	results := []connectors.Result{}
	tokens.ForEach(func(_, token gjson.Result) bool {
		address := token.Get("address")
		if address.Type != gjson.String || address.Str == "" {
			return true
		}
		metadata, ok := token.Value().(map[string]any)
		if !ok {
			return true
		}
		results = append(results, connectors.Result{
			ID:       address.Str,
			Title:    token.Get("name").String() + " " + address.Str,
			Text:     "",
			Metadata: metadata,
		})
		return true
	})
	return results, nil
}

// Fetch returns the metadata of the token minted at address id. An address
// the backend does not know yields an empty detail.
func (c *Connector) Fetch(ctx context.Context, id string) (connectors.Detail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fail("fetch", connectors.ErrEmptyQuery)
	}

	resp, err := c.client.Mints(ctx, []string{id})
	if err != nil {
		return nil, fail("fetch", err)
	}

	tokens, ok := tokenList(resp)
	if !ok {
		return nil, fail("fetch", fmt.Errorf("%w: missing content", connectors.ErrUnexpectedShape))
	}

	first := tokens.Get("0")
	if !first.IsObject() {
		return connectors.Detail{}, nil
	}

	detail := connectors.Detail{}
	for _, field := range detailFields {
		if v := first.Get(field); v.Exists() {
			detail[field] = v.Value()
		}
	}
	return detail, nil
}

// tokenList finds the token array in a response. The API wraps it in
// "content"; a bare array is accepted too.
func tokenList(resp gjson.Result) (gjson.Result, bool) {
	if resp.IsArray() {
		return resp, true
	}
	content := resp.Get("content")
	return content, content.IsArray()
}

func fail(op string, err error) error {
	return &connectors.BackendError{Connector: name, Op: op, Err: err}
}
