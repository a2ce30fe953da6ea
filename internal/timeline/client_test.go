package timeline

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
	"geoincra-portal/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(apihttp.NewClient(server.URL, 5*time.Second, auth.StaticToken("tok")))
}

func TestClient_AddStage(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/projects/4/timeline/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"id":10,"project_id":4,"titulo":"Revisão Final","status":"Pendente"}`))
	})

	entry, err := c.AddStage(context.Background(), 4, "Revisão Final", "  ")
	require.NoError(t, err)
	assert.Equal(t, int64(10), entry.ID)

	assert.Equal(t, float64(4), body["project_id"])
	assert.Equal(t, "Revisão Final", body["titulo"])
	assert.Nil(t, body["descricao"])
	assert.Equal(t, models.StagePending, body["status"])
	assert.Contains(t, body, "created_by_user_id")
	assert.Nil(t, body["created_by_user_id"])

	_, err = c.AddStage(context.Background(), 4, "", "")
	assert.Error(t, err)
}

func TestClient_UpdateProgressPostsNewEntry(t *testing.T) {
	tests := []struct {
		progress int
		want     string
	}{
		{0, models.StagePending},
		{25, models.StageInProgress},
		{99, models.StageInProgress},
		{100, models.StageDone},
	}

	for _, tt := range tests {
		var body map[string]interface{}
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Write([]byte(`{}`))
		})

		desc := "coleta"
		_, err := c.UpdateProgress(context.Background(), models.TimelineEntry{
			ID: 10, ProjectID: 4, Title: "Revisão Final", Description: &desc,
		}, tt.progress)
		require.NoError(t, err)
		assert.Equal(t, tt.want, body["status"])
		assert.Equal(t, "coleta", body["descricao"])
		assert.NotContains(t, body, "id")
	}
}

func TestClient_UpdateProgressOutOfRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.UpdateProgress(context.Background(), models.TimelineEntry{ProjectID: 4, Title: "x"}, 101)
	assert.Error(t, err)
}

func TestClient_Delete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/timeline/10", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.Delete(context.Background(), 10))
}

func TestStageStatus(t *testing.T) {
	assert.Equal(t, models.StagePending, models.StageStatus(-5))
	assert.Equal(t, models.StageInProgress, models.StageStatus(1))
	assert.Equal(t, models.StageDone, models.StageStatus(100))
}
