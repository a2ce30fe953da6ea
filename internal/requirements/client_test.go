package requirements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoincra-portal/internal/common/auth"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(apihttp.NewClient(server.URL, 5*time.Second, auth.StaticToken("tok")), logger.NewTestLogger(t))
}

func TestClient_Templates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/templates", r.URL.Path)
		assert.Equal(t, "incra", r.URL.Query().Get("categoria"))
		w.Write([]byte(`[{"id":3,"nome":"Requerimento INCRA","categoria":"incra"}]`))
	})

	templates := c.Templates(context.Background(), " incra ")
	require.Len(t, templates, 1)
	assert.Equal(t, "Requerimento INCRA", templates[0].Name)
	assert.Equal(t, "incra", templates[0].Category)
}

func TestClient_TemplatesWithoutCategory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.WriteHeader(http.StatusInternalServerError)
	})
	templates := c.Templates(context.Background(), "")
	assert.NotNil(t, templates)
	assert.Empty(t, templates)
}

func TestClient_ListAndGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/requerimentos/project/5":
			w.Write([]byte(`[{"id":1,"tipo":"averbacao","template_id":3,"dados_json":{"area":"10"}}]`))
		case "/api/requerimentos/project/5/one":
			if r.URL.Query().Get("tipo") == "averbacao" {
				w.Write([]byte(`{"id":1,"tipo":"averbacao","dados_json":{}}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	list := c.List(context.Background(), 5)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].TemplateID)
	assert.Equal(t, int64(3), *list[0].TemplateID)
	assert.Equal(t, "10", list[0].Data["area"])

	got := c.Get(context.Background(), 5, "averbacao")
	require.NotNil(t, got)
	assert.Equal(t, "averbacao", got.Type)

	assert.Nil(t, c.Get(context.Background(), 5, "desmembramento"))
}

func TestClient_Upsert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "averbacao", body["tipo"])
		assert.Equal(t, map[string]interface{}{}, body["dados_json"])
		w.Write([]byte(`{"id":9,"tipo":"averbacao","status":"rascunho","dados_json":{}}`))
	})

	saved, err := c.Upsert(context.Background(), 5, models.Requirement{Type: "averbacao"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), saved.ID)

	_, err = c.Upsert(context.Background(), 5, models.Requirement{})
	assert.Error(t, err)
}

func TestClient_DeleteSurfacesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "averbacao", r.URL.Query().Get("tipo"))
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Requerimento não encontrado"}`))
	})

	err := c.Delete(context.Background(), 5, "averbacao")
	var apiErr *apihttp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Requerimento não encontrado", apiErr.Message)
}

func TestClient_Generate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requerimentos/project/5/generate", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("template_id"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Write([]byte("PK\x03\x04"))
	})

	data, contentType, err := c.Generate(context.Background(), 5, "averbacao", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)
	assert.Contains(t, contentType, "wordprocessingml")
}
