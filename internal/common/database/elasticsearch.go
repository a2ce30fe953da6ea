// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"geoincra-portal/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// MunicipalityMapping is the index layout the elasticsearch resolver queries:
// prefix search on name, exact filter on region.
const MunicipalityMapping = `{
  "mappings": {
    "properties": {
      "id":                   {"type": "long"},
      "name":                 {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "region":               {"type": "keyword"},
      "valuation_floor_low":  {"type": "double"},
      "valuation_floor_high": {"type": "double"}
    }
  }
}`

// ElasticsearchClient holds the client backing the municipality index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch: no addresses configured")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

// Ping is the readiness check for the cluster.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates index with MunicipalityMapping unless it already exists.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index string) error {
	exists, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := c.Client.Indices.Create(index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(strings.NewReader(MunicipalityMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another replica may have won the race
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s: %s", index, res.Status(), string(body))
	}
	return nil
}
