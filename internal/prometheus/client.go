package prometheus

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog/log"
)

// Client evaluates one configured PromQL query against one endpoint,
// feeding richer metric values into the observer's samples. Connection
// is lazy: construction never touches the network, the first query
// does.
type Client struct {
	api      v1.API
	endpoint string
	query    string
	timeout  time.Duration
}

// NewClient builds a client for the scenario's endpoint and query.
func NewClient(endpoint, query string) (*Client, error) {
	apiClient, err := api.NewClient(api.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	client := &Client{
		api:      v1.NewAPI(apiClient),
		endpoint: endpoint,
		query:    query,
		timeout:  10 * time.Second,
	}

	log.Debug().
		Str("endpoint", endpoint).
		Str("query", query).
		Msg("prometheus client created (lazy connection)")

	return client, nil
}

// TestConnection fires a trivial query to verify reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, _, err := c.api.Query(ctx, "up", time.Now()); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// InstantValue evaluates the configured query now and returns its
// single value. An empty result is an error so the observer falls back
// to the autoscaler-reported value instead of recording a silent zero.
func (c *Client) InstantValue(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, warnings, err := c.api.Query(ctx, c.query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	if len(warnings) > 0 {
		log.Warn().
			Str("endpoint", c.endpoint).
			Strs("warnings", warnings).
			Msg("prometheus query returned warnings")
	}

	return extractSingleValue(result)
}

func extractSingleValue(value model.Value) (float64, error) {
	switch v := value.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, fmt.Errorf("query returned no series")
		}
		return float64(v[0].Value), nil
	case *model.Scalar:
		return float64(v.Value), nil
	default:
		return 0, fmt.Errorf("unexpected value type: %T", value)
	}
}
