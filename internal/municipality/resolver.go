// Package municipality resolves municipality names for autocomplete inputs
// and memoizes the answers for the lifetime of the process.
package municipality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/models"
)

// Resolver fetches the municipalities matching query inside state.
type Resolver interface {
	Resolve(ctx context.Context, query, state string) ([]models.Municipality, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, query, state string) ([]models.Municipality, error)

func (f ResolverFunc) Resolve(ctx context.Context, query, state string) ([]models.Municipality, error) {
	return f(ctx, query, state)
}

// HTTPResolver queries GET /api/municipios?search=&uf= on the portal backend.
type HTTPResolver struct {
	client *apihttp.Client
}

func NewHTTPResolver(client *apihttp.Client) *HTTPResolver {
	return &HTTPResolver{client: client}
}

func (r *HTTPResolver) Resolve(ctx context.Context, query, state string) ([]models.Municipality, error) {
	params := url.Values{}
	params.Set("search", query)
	if state != "" {
		params.Set("uf", state)
	}

	req, err := r.client.NewRequest(ctx, http.MethodGet, "/api/municipios", params, nil)
	if err != nil {
		return nil, err
	}
	data, _, err := r.client.Send(req)
	if err != nil {
		return nil, err
	}

	// anything other than an array is treated as no matches
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return []models.Municipality{}, nil
	}

	var out []models.Municipality
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode municipios: %w", err)
	}
	return out, nil
}
