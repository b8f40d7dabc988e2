// Package shyft looks up Solana liquidity pools through the Shyft DeFi API.
package shyft

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cwoolley/solmcp/internal/connectors"
)

const name = "shyft"

// excludedDexes are dropped from search results entirely.
var excludedDexes = map[string]bool{
	"openbookV2": true,
	"fluxbeam":   true,
}

// PoolClient abstracts the Shyft API for testability.
type PoolClient interface {
	PoolsByToken(ctx context.Context, token string) (gjson.Result, error)
	LiquidityDetails(ctx context.Context, address string) (gjson.Result, error)
}

// Connector implements connectors.Connector for liquidity pools.
type Connector struct {
	client PoolClient
}

// NewConnector creates a pool connector with the given client.
func NewConnector(client PoolClient) *Connector {
	return &Connector{client: client}
}

func (c *Connector) Name() string {
	return name
}

// Search lists the pools that contain the token whose public key is query.
// Pools are grouped by dex in the response; groups keep the order the
// backend sent them in, and so do the pools inside each group.
func (c *Connector) Search(ctx context.Context, query string) ([]connectors.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fail("search", connectors.ErrEmptyQuery)
	}

	resp, err := c.client.PoolsByToken(ctx, query)
	if err != nil {
		return nil, fail("search", err)
	}

	dexes := resp.Get("result.dexes")
	if !dexes.IsObject() {
		return nil, fail("search", fmt.Errorf("%w: missing result.dexes", connectors.ErrUnexpectedShape))
	}

	results := []connectors.Result{}
	dexes.ForEach(func(key, group gjson.Result) bool {
		dex := key.String()
		if excludedDexes[dex] {
			return true
		}
		group.Get("pools").ForEach(func(_, pool gjson.Result) bool {
			if r, ok := poolResult(dex, pool); ok {
				results = append(results, r)
			}
			return true
		})
		return true
	})
	return results, nil
}

// poolResult turns one raw pool into a search result. Pools without a
// pubkey are skipped.
func poolResult(dex string, pool gjson.Result) (connectors.Result, bool) {
	pubkey := pool.Get("pubkey")
	if pubkey.Type != gjson.String || pubkey.Str == "" {
		return connectors.Result{}, false
	}
	raw, ok := pool.Value().(map[string]any)
	if !ok {
		return connectors.Result{}, false
	}

	// Raw pool fields take precedence over the group name.
	metadata := make(map[string]any, len(raw)+1)
	metadata["dex"] = dex
	for k, v := range raw {
		metadata[k] = v
	}

	return connectors.Result{
		ID:       pubkey.Str,
		Title:    dex + " " + pubkey.Str,
		Text:     "",
		Metadata: metadata,
	}, true
}

// Fetch returns the liquidity held by the pool at address id.
func (c *Connector) Fetch(ctx context.Context, id string) (connectors.Detail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fail("fetch", connectors.ErrEmptyQuery)
	}

	resp, err := c.client.LiquidityDetails(ctx, id)
	if err != nil {
		return nil, fail("fetch", err)
	}

	result := resp.Get("result")
	liquidity := result.Get("liquidity")
	if !result.IsObject() || !liquidity.IsObject() {
		return nil, fail("fetch", fmt.Errorf("%w: missing result.liquidity", connectors.ErrUnexpectedShape))
	}

	detail := connectors.Detail{}
	copyField(detail, "address", result.Get("address"))
	copyField(detail, "dex", result.Get("dex"))
	copyField(detail, "tokenA", liquidity.Get("tokenA"))
	copyField(detail, "tokenB", liquidity.Get("tokenB"))
	return detail, nil
}

func copyField(dst connectors.Detail, key string, v gjson.Result) {
	if v.Exists() {
		dst[key] = v.Value()
	}
}

func fail(op string, err error) error {
	return &connectors.BackendError{Connector: name, Op: op, Err: err}
}
