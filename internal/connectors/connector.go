package connectors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned for a blank search query or fetch id.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnexpectedShape is returned when a backend answers with JSON that
	// lacks the fields a connector needs.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// Result represents a single search result from any connector.
type Result struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Detail is the flat record a connector returns for one id.
type Detail map[string]any

// Connector is the interface that each data source implements.
type Connector interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
	Fetch(ctx context.Context, id string) (Detail, error)
}

// BackendError wraps every failure a connector reports for one operation.
type BackendError struct {
	Connector string
	Op        string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Connector, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
