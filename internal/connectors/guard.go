package connectors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cwoolley/solmcp/internal/logging"
)

// Guard is the boundary between a Connector and the tool layer. Search and
// Fetch never fail: a connector error is logged and replaced with an empty
// list or an empty detail.
type Guard struct {
	connector Connector
	log       zerolog.Logger
}

// NewGuard wraps c. log is used when the call context carries no logger.
func NewGuard(c Connector, log zerolog.Logger) *Guard {
	return &Guard{connector: c, log: log}
}

// Search returns the connector's results, or an empty non-nil slice when the
// connector fails.
func (g *Guard) Search(ctx context.Context, query string) []Result {
	log := logging.FromContext(ctx, g.log)

	results, err := g.connector.Search(ctx, query)
	if err != nil {
		g.logFailure(log, err).Str("query", query).Msg("Search error")
		return []Result{}
	}
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if r.ID == "" {
			log.Warn().Str("title", r.Title).Msg("Dropping result without id")
			continue
		}
		kept = append(kept, r)
	}
	results = kept
	log.Debug().Str("query", query).Int("results", len(results)).Msg("Search finished")
	return results
}

// Fetch returns the connector's detail, or an empty non-nil detail when the
// connector fails.
func (g *Guard) Fetch(ctx context.Context, id string) Detail {
	log := logging.FromContext(ctx, g.log)

	detail, err := g.connector.Fetch(ctx, id)
	if err != nil {
		g.logFailure(log, err).Str("id", id).Msg("Fetch error")
		return Detail{}
	}
	if detail == nil {
		detail = Detail{}
	}
	return detail
}

// logFailure starts an error event for err. Calls abandoned by the caller are
// logged at debug level.
func (g *Guard) logFailure(log *zerolog.Logger, err error) *zerolog.Event {
	ev := log.Error()
	if errors.Is(err, context.Canceled) {
		ev = log.Debug()
	}
	return ev.Err(err).Str("connector", g.connector.Name())
}
