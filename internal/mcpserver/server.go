/*
Package mcpserver builds the MCP server for one provider.

The server exposes two tools regardless of provider:
  - search: find candidate records for a free-form query
  - fetch: return the detail record for an id returned by search

Both tools always succeed from the caller's point of view. Backend failures
are logged and answered with an empty list or an empty detail.
*/
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/cwoolley/solmcp/internal/config"
	"github.com/cwoolley/solmcp/internal/connectors"
	"github.com/cwoolley/solmcp/internal/connectors/shyft"
	"github.com/cwoolley/solmcp/internal/connectors/solflare"
	"github.com/cwoolley/solmcp/internal/logging"
)

const (
	SearchTool = "search"
	FetchTool  = "fetch"
)

// SearchOutput is the structured result of the search tool.
type SearchOutput struct {
	IDs []connectors.Result `json:"ids"`
}

// FetchOutput is the structured result of the fetch tool.
type FetchOutput struct {
	Info connectors.Detail `json:"info"`
}

// variant holds the provider-specific wording shown to MCP clients.
type variant struct {
	name              string
	instructions      string
	searchDescription string
	queryDescription  string
	fetchDescription  string
	idDescription     string
}

var variants = map[config.Provider]variant{
	config.ProviderPool: {
		name:              "Shyft Liquidity Pools",
		instructions:      "This server provides data lookup tools for Solana liquidity pools.",
		searchDescription: "Searches for Solana liquidity pools by token pubkey. Returns a list of pools with dex info & metadata.",
		queryDescription:  "Token public key to search for",
		fetchDescription:  "Returns the amount of each token in the liquidity pool.",
		idDescription:     "Pool address to fetch details for",
	},
	config.ProviderToken: {
		name:              "Solflare Token API",
		instructions:      "This server provides data lookup tools via Solflare UTL API.",
		searchDescription: "Searches for Solana token by name or symbol. Returns a list of tokens with metadata.",
		queryDescription:  "Token name or symbol to search for",
		fetchDescription:  "Returns the information for a given token.",
		idDescription:     "Token address to fetch details for",
	},
}

type options struct {
	httpClient *http.Client
	log        zerolog.Logger
	version    string
}

type Option func(*options)

// WithHTTPClient sets the client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Server is an MCP server bound to one provider.
type Server struct {
	provider config.Provider
	variant  variant
	guard    *connectors.Guard
	mcp      *server.MCPServer
	log      zerolog.Logger
}

// New validates cfg, builds the connector for cfg.Provider and registers the
// search and fetch tools. An unknown provider or a missing API key is an
// error; no server is returned.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{log: zerolog.Nop(), version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := newConnector(cfg, o)
	if err != nil {
		return nil, err
	}
	v := variants[cfg.Provider]

	s := &Server{
		provider: cfg.Provider,
		variant:  v,
		guard:    connectors.NewGuard(conn, o.log),
		log:      o.log,
		mcp: server.NewMCPServer(
			v.name,
			o.version,
			server.WithToolCapabilities(false),
			server.WithInstructions(v.instructions),
		),
	}
	s.registerTools()
	return s, nil
}

func newConnector(cfg *config.Config, o options) (connectors.Connector, error) {
	switch cfg.Provider {
	case config.ProviderPool:
		return shyft.NewConnector(shyft.NewAPIClient(cfg.ShyftURL, cfg.ShyftAPIKey, o.httpClient, o.log)), nil
	case config.ProviderToken:
		return solflare.NewConnector(solflare.NewAPIClient(cfg.SolflareURL, o.httpClient, o.log)), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, cfg.Provider)
	}
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool(SearchTool,
		mcp.WithDescription(s.variant.searchDescription),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description(s.variant.queryDescription),
		),
		mcp.WithOutputSchema[SearchOutput](),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcp.AddTool(searchTool, s.handleSearch)

	fetchTool := mcp.NewTool(FetchTool,
		mcp.WithDescription(s.variant.fetchDescription),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description(s.variant.idDescription),
		),
		mcp.WithOutputSchema[FetchOutput](),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcp.AddTool(fetchTool, s.handleFetch)
}

// Name is the server name announced to MCP clients.
func (s *Server) Name() string {
	return s.variant.name
}

func (s *Server) Provider() config.Provider {
	return s.provider
}

// MCPServer exposes the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Search runs the search operation outside of MCP.
func (s *Server) Search(ctx context.Context, query string) SearchOutput {
	return SearchOutput{IDs: s.guard.Search(ctx, query)}
}

// Fetch runs the fetch operation outside of MCP.
func (s *Server) Fetch(ctx context.Context, id string) FetchOutput {
	return FetchOutput{Info: s.guard.Fetch(ctx, id)}
}

// ServeStdio serves MCP over stdin/stdout until stdin closes or the process
// is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp, server.WithErrorLogger(stdlog.New(s.log, "", 0)))
}

// HTTPHandler returns the streamable HTTP transport for this server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = s.requestContext(ctx, SearchTool)
	logging.FromContext(ctx, s.log).Info().Str("query", query).Msg("Searching")

	return structuredResult(s.Search(ctx, query))
}

func (s *Server) handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = s.requestContext(ctx, FetchTool)
	logging.FromContext(ctx, s.log).Info().Str("id", id).Msg("Fetching")

	return structuredResult(s.Fetch(ctx, id))
}

// requestContext attaches a logger tagged with a fresh request id.
func (s *Server) requestContext(ctx context.Context, tool string) context.Context {
	log := s.log.With().
		Str("request_id", uuid.NewString()).
		Str("tool", tool).
		Stringer("provider", s.provider).
		Logger()
	return log.WithContext(ctx)
}

func structuredResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultStructured(v, string(text)), nil
}
