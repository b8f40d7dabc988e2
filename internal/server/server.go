package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

// Server hosts the MCP streamable HTTP transport next to a health endpoint.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	mux        *http.ServeMux
	log        zerolog.Logger
}

// New creates a server on addr serving mcpHandler at MCPPath. name is
// reported by the health endpoint.
func New(addr, name string, mcpHandler http.Handler, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		mux: mux,
		log: log,
	}

	s.Handle("GET /health", healthHandler(name))
	if mcpHandler != nil {
		s.Handle(MCPPath, mcpHandler)
	}
	return s
}

func healthHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "server": name})
	})
}

// Handle registers an HTTP handler on the server's mux.
// Must be called before Serve.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug().Str("pattern", pattern).Msg("Registered route")
}

// Listen binds the socket. Must be called before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Serve starts accepting connections. Blocks until shutdown.
// Caller must call Listen first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("must call Listen before Serve")
	}
	s.log.Info().Str("addr", s.Addr()).Str("path", MCPPath).Msg("Serving MCP over HTTP")
	return s.httpServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
