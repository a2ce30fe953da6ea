package proposal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoincra-portal/internal/common/auth"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/wizard"
)

func newClient(url string) *apihttp.Client {
	return apihttp.NewClient(url, 5*time.Second, auth.StaticToken("tok"))
}

func TestProposal_PassthroughSubmit(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/propostas/generate/9", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"total":3200,"pdf_path":"/p.pdf"}`))
	}))
	defer server.Close()

	payload := wizard.Draft{"cliente": "Ana", "area_hectares": 12.0, "partes": nil}
	c := New(NewSubmitter(newClient(server.URL)), payload,
		wizard.WithTarget("9"), wizard.WithLogger(logger.NewTestLogger(t)))

	assert.Equal(t, 2, c.Definition().Len())
	_, err := c.Next()
	require.NoError(t, err)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, out.Result.Success)
	assert.Equal(t, map[string]interface{}{"cliente": "Ana", "area_hectares": 12.0, "partes": nil}, got)
	assert.Equal(t, wizard.PhaseSubmitted, c.State().Phase)
}

func TestProposal_Preconditions(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		target  string
		payload wizard.Draft
		wantMsg string
	}{
		{"no target", "", wizard.Draft{"cliente": "Ana"}, wizard.MsgNoTarget},
		{"no payload", "9", nil, MsgNoPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(NewSubmitter(newClient(server.URL)), tt.payload, wizard.WithTarget(tt.target))
			_, err := c.Next()
			require.NoError(t, err)

			out, err := c.Submit(context.Background())
			require.NoError(t, err)
			assert.Equal(t, wizard.ResultPrecondition, out.Result.Kind)
			assert.Equal(t, tt.wantMsg, c.Errors()[wizard.FieldSubmit])
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHistory_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/propostas/history/9", r.URL.Path)
		w.Write([]byte(`[{"id":1,"area":12.5,"total":3200,"created_at":"2026-03-01T10:00:00","pdf_url":"/p.pdf"}]`))
	}))
	defer server.Close()

	records := NewHistory(newClient(server.URL), logger.NewTestLogger(t)).List(context.Background(), "9")
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, 3200.0, records[0].Total)
	assert.Equal(t, "/p.pdf", records[0].PDFURL)
}

func TestHistory_ErrorsDegradeToEmpty(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`},
		{"not a list", http.StatusOK, `{"detail":"x"}`},
		{"null", http.StatusOK, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			records := NewHistory(newClient(server.URL), nil).List(context.Background(), "9")
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}
