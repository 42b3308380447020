package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/datalog-core/internal/infrastructure/config"
)

// Client is an InfluxQL 1.x HTTP client.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	rest     *resty.Client
	database string
	username string
	password string

	connected bool
	mu        sync.RWMutex
}

// New builds a client from configuration. No network traffic happens
// until Connect is called.
func New(cfg config.InfluxConfig) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json")

	return &Client{
		rest:     rest,
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Database returns the configured default database name.
func (c *Client) Database() string {
	return c.database
}

// Connect verifies connectivity via GET /ping and marks the client
// connected. Calling Connect on an already-connected client is a no-op;
// there is never more than one underlying session.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: ErrTransport if the store is unreachable
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	if c.connected {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	resp, err := c.rest.R().SetContext(ctx).Get("/ping")
	if err != nil {
		return fmt.Errorf("%w: ping: %v", ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: ping: HTTP %d", ErrTransport, resp.StatusCode())
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ListDatabases returns the set of database names present in the store.
func (c *Client) ListDatabases(ctx context.Context) (map[string]bool, error) {
	rs, err := c.Query(ctx, "", "SHOW DATABASES")
	if errors.Is(err, ErrNoData) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			names[name] = true
		}
	}
	return names, nil
}

// CreateDatabase creates a database. Creating an existing database
// succeeds silently; the operation is idempotent.
func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	// A successful CREATE DATABASE reply carries no series.
	_, err := c.exec(ctx, "", fmt.Sprintf("CREATE DATABASE %q", name))
	if errors.Is(err, ErrNoData) {
		return nil
	}
	return err
}

// ListMeasurements returns the measurement names of a database in the
// order the store emits them. A database without measurements yields an
// empty list, not an error.
func (c *Client) ListMeasurements(ctx context.Context, db string) ([]string, error) {
	rs, err := c.Query(ctx, db, "SHOW MEASUREMENTS")
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
