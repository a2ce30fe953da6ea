package municipality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"geoincra-portal/internal/models"
)

const defaultSearchSize = 20

// ElasticsearchResolver searches a municipality index by name prefix,
// filtered by region.
type ElasticsearchResolver struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewElasticsearchResolver(client *elasticsearch.Client, index string) *ElasticsearchResolver {
	return &ElasticsearchResolver{client: client, index: index, size: defaultSearchSize}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *ElasticsearchResolver) buildQuery(query, state string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"match_phrase_prefix": map[string]interface{}{
					"name": map[string]interface{}{"query": query},
				},
			},
		},
	}
	if state != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"region": state}},
		}
	}
	return map[string]interface{}{
		"size":  r.size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{"_score", map[string]interface{}{"name.keyword": "asc"}},
	}
}

func (r *ElasticsearchResolver) Resolve(ctx context.Context, query, state string) ([]models.Municipality, error) {
	body, err := json.Marshal(r.buildQuery(query, state))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch search error: %s: %s", res.Status(), string(msg))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]models.Municipality, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var m models.Municipality
		if err := json.Unmarshal(hit.Source, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
