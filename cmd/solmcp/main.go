package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cwoolley/solmcp/internal/config"
	"github.com/cwoolley/solmcp/internal/connectors"
	"github.com/cwoolley/solmcp/internal/logging"
	"github.com/cwoolley/solmcp/internal/mcpserver"
	"github.com/cwoolley/solmcp/internal/server"
	"github.com/cwoolley/solmcp/internal/tui"
)

// version is set at build time via -ldflags.
var version = "dev"

// loadConfig is a package-level var so tests can inject config errors.
var loadConfig = config.Load

// logOutput receives structured logs. stdout belongs to the stdio transport
// and command output.
var logOutput io.Writer = os.Stderr

// makeSignalCh creates a channel that receives SIGINT/SIGTERM.
// It is a package-level var so tests can inject a channel without sending real signals.
var makeSignalCh = func() (chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// serveStdio blocks serving MCP over stdin/stdout. Replaced in tests.
var serveStdio = func(s *mcpserver.Server) error {
	return s.ServeStdio()
}

// teaRunner abstracts tea.Program for testability.
type teaRunner interface {
	Run() (tea.Model, error)
}

// newTeaProgram creates a Bubble Tea program. Package-level var for testing.
var newTeaProgram = func(m tea.Model) teaRunner {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// httpServer is the subset of *server.Server used by serveLoop.
type httpServer interface {
	Serve() error
	Addr() string
	Shutdown(ctx context.Context) error
}

// app is everything a subcommand needs once configuration has been resolved.
type app struct {
	cfg *config.Config
	srv *mcpserver.Server
	log zerolog.Logger
}

// newApp loads the configuration, applies the --provider override and builds
// the MCP server.
func newApp(provider string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if provider != "" {
		p, err := config.ParseProvider(provider)
		if err != nil {
			return nil, err
		}
		cfg.Provider = p
	}

	log, err := logging.New(logOut, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	srv, err := mcpserver.New(cfg, mcpserver.WithLogger(log), mcpserver.WithVersion(version))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, srv: srv, log: log}, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	var provider string

	root := &cobra.Command{
		Use:           "solmcp",
		Short:         "MCP server for Solana liquidity pools and token metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&provider, "provider", "", "backend variant: pool or token (overrides SOLMCP_PROVIDER)")

	var useHTTP bool
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search and fetch tools over MCP",
		Long: "Serve the search and fetch tools over MCP.\n\n" +
			"Speaks MCP over stdin/stdout by default. With --http the streamable\n" +
			"HTTP transport is mounted at " + server.MCPPath + " next to /health.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(provider, logOutput)
			if err != nil {
				return err
			}
			if !useHTTP {
				a.log.Info().Str("server", a.srv.Name()).Msg("Serving MCP over stdio")
				return serveStdio(a.srv)
			}

			listenAddr := a.cfg.ServerAddr
			if cmd.Flags().Changed("addr") || listenAddr == "" {
				listenAddr = addr
			}
			srv := server.New(listenAddr, a.srv.Name(), a.srv.HTTPHandler(), a.log)
			if err := srv.Listen(); err != nil {
				return fmt.Errorf("listen on %s: %w", listenAddr, err)
			}
			return serveLoop(srv, out)
		},
	}
	serveCmd.Flags().BoolVar(&useHTTP, "http", false, "serve streamable HTTP instead of stdio")
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on with --http (overrides SOLMCP_SERVER_ADDR)")

	var asJSON bool
	searchCmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Run the search tool once and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(provider, logOutput)
			if err != nil {
				return err
			}

			res := a.srv.Search(cmd.Context(), strings.Join(args, " "))
			if asJSON {
				return writeJSON(out, res)
			}

			if len(res.IDs) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, r := range res.IDs {
				fmt.Fprintf(out, "%d. %s\n   %s\n\n", i+1, r.Title, r.ID)
			}
			return nil
		},
	}
	searchCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw tool output as JSON")

	fetchCmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Run the fetch tool once and print the detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(provider, logOutput)
			if err != nil {
				return err
			}
			return writeJSON(out, a.srv.Fetch(cmd.Context(), args[0]))
		},
	}

	interactiveCmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"tui"},
		Short:   "Browse search results and details in a terminal UI",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would tear the alternate screen.
			a, err := newApp(provider, io.Discard)
			if err != nil {
				return err
			}

			searchFn := func(ctx context.Context, query string) ([]connectors.Result, error) {
				return a.srv.Search(ctx, query).IDs, nil
			}
			fetchFn := func(ctx context.Context, id string) (connectors.Detail, error) {
				return a.srv.Fetch(ctx, id).Info, nil
			}

			_, err = newTeaProgram(tui.NewModel(a.srv.Name(), searchFn, fetchFn)).Run()
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "solmcp version %s\n", version)
		},
	}

	root.AddCommand(serveCmd, searchCmd, fetchCmd, interactiveCmd, versionCmd)
	return root
}

// serveLoop serves until the server stops on its own or a signal arrives,
// then shuts down gracefully.
func serveLoop(srv httpServer, out io.Writer) error {
	sigCh, stop := makeSignalCh()
	defer stop()

	fmt.Fprintf(out, "Listening on %s\n", srv.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCh:
		fmt.Fprintln(out, "shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runWithOutput(args []string, out io.Writer) error {
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd.Execute()
}

func run(args []string) error {
	return runWithOutput(args, os.Stdout)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
