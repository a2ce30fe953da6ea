package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoincra-portal/internal/automation"
	"geoincra-portal/internal/common/auth"
	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/documents"
	"geoincra-portal/internal/proposal"
	"geoincra-portal/internal/requirements"
	"geoincra-portal/internal/timeline"
)

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// fakeBackend answers the portal endpoints the project routes relay to.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	jsonReply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}

	mux.HandleFunc("GET /api/propostas/history/77", func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 200, `[{"id":1,"area":120.5,"total":10000,"created_at":"2026-01-01"}]`)
	})
	mux.HandleFunc("GET /api/templates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "incra", r.URL.Query().Get("categoria"))
		jsonReply(w, 200, `[{"id":3,"nome":"Requerimento INCRA","categoria":"incra"}]`)
	})
	mux.HandleFunc("GET /api/requerimentos/project/77/one", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tipo") != "incra" {
			jsonReply(w, 404, `{"detail":"Requerimento não encontrado"}`)
			return
		}
		jsonReply(w, 200, `{"id":9,"project_id":77,"tipo":"incra","template_id":3,"dados_json":{}}`)
	})
	mux.HandleFunc("PUT /api/requerimentos/project/77", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "incra", body["tipo"])
		body["id"] = 9
		data, _ := json.Marshal(body)
		jsonReply(w, 200, string(data))
	})
	mux.HandleFunc("GET /api/requerimentos/project/77/generate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("template_id"))
		w.Header().Set("Content-Type", docxType)
		_, _ = w.Write([]byte("PK-docx"))
	})
	mux.HandleFunc("POST /api/projects/77/timeline/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["id"] = 5
		data, _ := json.Marshal(body)
		jsonReply(w, 200, string(data))
	})
	mux.HandleFunc("DELETE /api/timeline/5", func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 404, `{"detail":"Etapa não encontrada"}`)
	})
	mux.HandleFunc("GET /api/files/documents/12", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	})
	mux.HandleFunc("DELETE /api/documents/12", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/automacoes/onr/consulta/jobs", func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 200, `{"id":1,"type":"ONR_SIGRI_CONSULTA","status":"PENDING"}`)
	})
	mux.HandleFunc("GET /api/automacoes/jobs/2", func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 500, `{"detail":"boom"}`)
	})
	mux.HandleFunc("POST /api/uploads/document", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "77", r.URL.Query().Get("project_id"))
		docType := r.URL.Query().Get("doc_type")
		if docType == "outros" {
			jsonReply(w, 400, `{"detail":"Formato de arquivo não suportado"}`)
			return
		}
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := json.Marshal(map[string]interface{}{
			"id":                40,
			"project_id":        77,
			"doc_type":          docType,
			"original_filename": header.Filename,
		})
		jsonReply(w, 200, string(data))
	})
	mux.HandleFunc("POST /api/uploads/matricula", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "77", r.URL.Query().Get("project_id"))
		assert.Empty(t, r.URL.Query().Get("doc_type"))
		jsonReply(w, 200, `{"id":41,"project_id":77,"doc_type":"matricula"}`)
	})
	mux.HandleFunc("GET /api/documents", func(w http.ResponseWriter, r *http.Request) {
		jsonReply(w, 502, `<html>bad gateway</html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newPortal(t *testing.T) *Portal {
	t.Helper()
	backend := fakeBackend(t)
	log := logger.NewTestLogger(t)
	client := apihttp.NewClient(backend.URL, 5*time.Second, auth.StaticToken("tok"))
	return &Portal{
		History:      proposal.NewHistory(client, log),
		Requirements: requirements.NewClient(client, log),
		Timeline:     timeline.NewClient(client),
		Documents:    documents.NewClient(client, log),
		Automations:  automation.NewClient(client, log),
	}
}

func newPortalServer(t *testing.T) *httptest.Server {
	t.Helper()
	api := httptest.NewServer(New(Options{Logger: logger.NewTestLogger(t), Portal: newPortal(t)}))
	t.Cleanup(api.Close)
	return api
}

func call(t *testing.T, api *httptest.Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, api.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPortalRoutes(t *testing.T) {
	api := newPortalServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		status   int
		contains string
	}{
		{"proposal history", http.MethodGet, "/api/projects/77/proposals", nil, 200, `"total":10000`},
		{"templates", http.MethodGet, "/api/templates?categoria=incra", nil, 200, `"name":"Requerimento INCRA"`},
		{"requirement", http.MethodGet, "/api/projects/77/requirements/incra", nil, 200, `"tipo":"incra"`},
		{"missing requirement", http.MethodGet, "/api/projects/77/requirements/ccir", nil, 404, string(apperrors.ErrCodeNotFound)},
		{"upsert requirement", http.MethodPut, "/api/projects/77/requirements/incra", map[string]interface{}{"template_id": 3, "dados_json": map[string]interface{}{"area": 10}}, 200, `"id":9`},
		{"add stage", http.MethodPost, "/api/projects/77/timeline", map[string]interface{}{"title": "Levantamento"}, 201, `"status":"Pendente"`},
		{"stage progress", http.MethodPost, "/api/projects/77/timeline/progress", map[string]interface{}{"title": "Levantamento", "progress": 40}, 201, `"status":"Em Andamento"`},
		{"progress required", http.MethodPost, "/api/projects/77/timeline/progress", map[string]interface{}{"title": "Levantamento"}, 422, string(apperrors.ErrCodePreconditionFailed)},
		{"blank stage title", http.MethodPost, "/api/projects/77/timeline", map[string]interface{}{"title": " "}, 422, "stage title is required"},
		{"backend 404 passes through", http.MethodDelete, "/api/timeline/5", nil, 404, "Etapa não encontrada"},
		{"documents degrade to empty", http.MethodGet, "/api/projects/77/documents", nil, 200, `[]`},
		{"delete document", http.MethodDelete, "/api/documents/12", nil, 204, ""},
		{"start onr", http.MethodPost, "/api/automations/onr", map[string]interface{}{"project_id": 77, "modo": "car", "valor": " RO-123 "}, 201, `"status":"PENDING"`},
		{"unreadable job", http.MethodGet, "/api/automations/jobs/2", nil, 404, string(apperrors.ErrCodeNotFound)},
		{"non numeric project", http.MethodGet, "/api/projects/abc/requirements", nil, 404, string(apperrors.ErrCodeNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := call(t, api, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Contains(t, string(data), tt.contains)
		})
	}
}

func TestPortalDownloads(t *testing.T) {
	api := newPortalServer(t)

	resp, data := call(t, api, http.MethodGet, "/api/projects/77/requirements/incra/document?template_id=3", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, docxType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "requerimento_incra.docx")
	assert.Equal(t, "PK-docx", string(data))

	resp, _ = call(t, api, http.MethodGet, "/api/projects/77/requirements/incra/document", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, data = call(t, api, http.MethodGet, "/api/documents/12/file?name=matricula.pdf", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "matricula.pdf")
	assert.Equal(t, "%PDF", string(data))
}

// multipartBody builds a form with the given fields and, when filename is
// set, a "file" part.
func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, form.WriteField(k, v))
	}
	if filename != "" {
		part, err := form.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())
	return &buf, form.FormDataContentType()
}

func TestPortalUploads(t *testing.T) {
	api := newPortalServer(t)

	tests := []struct {
		name     string
		path     string
		fields   map[string]string
		filename string
		status   int
		contains string
	}{
		{"typed document", "/api/projects/77/documents", map[string]string{"doc_type": "car"}, "car.pdf", 201, `"doc_type":"car"`},
		{"type from query", "/api/projects/77/documents?doc_type=ccir", nil, "ccir.pdf", 201, `"doc_type":"ccir"`},
		{"defaults to matricula", "/api/projects/77/documents", nil, "mat.pdf", 201, `"original_filename":"mat.pdf"`},
		{"matricula endpoint", "/api/projects/77/matricula", nil, "mat.jpg", 201, `"id":41`},
		{"missing file", "/api/projects/77/documents", map[string]string{"doc_type": "car"}, "", 422, "select a file to upload"},
		{"unknown type", "/api/projects/77/documents", map[string]string{"doc_type": "foto"}, "a.png", 422, "unknown document type foto"},
		{"backend rejection keeps detail", "/api/projects/77/documents", map[string]string{"doc_type": "outros"}, "a.exe", 400, "Formato de arquivo não suportado"},
		{"non numeric project", "/api/projects/abc/matricula", nil, "mat.pdf", 404, string(apperrors.ErrCodeNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, tt.filename, "%PDF")
			resp, err := http.Post(api.URL+tt.path, contentType, body)
			require.NoError(t, err)
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Contains(t, string(data), tt.contains)
		})
	}
}

func TestPortalUploadLimit(t *testing.T) {
	handler := New(Options{Logger: logger.NewTestLogger(t), Portal: newPortal(t), MaxUploadBytes: 1024})

	body, contentType := multipartBody(t, nil, "big.pdf", strings.Repeat("x", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/projects/77/matricula", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeSerializationFailed, out.Code)
}

func TestPortalRoutesOffWithoutClients(t *testing.T) {
	api := httptest.NewServer(New(Options{Logger: logger.NewTestLogger(t)}))
	defer api.Close()

	resp, _ := call(t, api, http.MethodGet, "/api/projects/77/proposals", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, api, http.MethodPost, "/api/projects/77/matricula", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
