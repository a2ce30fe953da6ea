package budget

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
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/wizard"
)

type backend struct {
	server  *httptest.Server
	calls   int32
	payload map[string]interface{}
}

func newBackend(t *testing.T, status int, body string) *backend {
	t.Helper()
	b := &backend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.calls, 1)
		assert.Equal(t, "/api/propostas/generate/77", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b.payload))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) Calls() int {
	return int(atomic.LoadInt32(&b.calls))
}

func newWizard(t *testing.T, url string, opts ...wizard.Option) *wizard.Controller {
	t.Helper()
	client := apihttp.NewClient(url, 5*time.Second, auth.StaticToken("tok"))
	opts = append([]wizard.Option{wizard.WithLogger(logger.NewTestLogger(t))}, opts...)
	return New(NewSubmitter(client), opts...)
}

func fillBoaVista(t *testing.T, c *wizard.Controller) {
	t.Helper()
	require.NoError(t, c.Set("cliente", "Fazenda Boa Vista"))
	require.NoError(t, SelectMunicipality(c, models.Municipality{ID: "1100205", Name: "Porto Velho", Region: "RO"}))
	require.NoError(t, c.Merge(wizard.Draft{"descricao_imovel": "Lote 12, gleba Jaci", "area_ha": "120.5"}))
}

func advanceTo(t *testing.T, c *wizard.Controller, step int) {
	t.Helper()
	for c.State().Step < step {
		res, err := c.Next()
		require.NoError(t, err)
		require.True(t, res.Valid(), "step %d: %v", c.State().Step, res)
	}
}

func TestDefinition(t *testing.T) {
	def := Definition()
	assert.Equal(t, Kind, def.Kind)
	assert.Equal(t, 6, def.Len())

	initial := def.InitialDraft()
	assert.Equal(t, "RO", initial["uf"])
	assert.Equal(t, PurposeAverbacao, initial["finalidade"])
	assert.Equal(t, true, initial["ccir_atualizado"])
	assert.Equal(t, false, initial["mais_50_mata"])
	assert.Nil(t, initial["municipio_id"])
}

func TestBudget_SubmitSuccess(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"base_value":9500.00,"extras_value":500.00,"total_value":10000.00}`)
	c := newWizard(t, b.server.URL, wizard.WithTarget("77"))

	fillBoaVista(t, c)
	advanceTo(t, c, 6)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	require.True(t, out.Result.Success)
	assert.Equal(t, wizard.PhaseSubmitted, c.State().Phase)

	result, err := Decode(c.LastResult())
	require.NoError(t, err)
	assert.Equal(t, 10000.00, result.TotalValue)
	assert.Equal(t, 9500.00, result.BaseValue)

	assert.Equal(t, 120.5, b.payload["area_hectares"])
	assert.Equal(t, "Fazenda Boa Vista", b.payload["cliente"])
	assert.Equal(t, float64(1100205), b.payload["municipio_id"])
	assert.Equal(t, false, b.payload["mata_mais_50"])
	assert.Nil(t, b.payload["partes"])
	assert.Equal(t, 0.0, b.payload["estaqueamento_km"])
	assert.Equal(t, 0.0, b.payload["notificacao_confrontantes"])
	assert.NotContains(t, b.payload, "area_ha")
	assert.NotContains(t, b.payload, "uf")
}

func TestBudget_LegacyResponseNames(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"valor_base":9500,"extras":500,"total":10000,"pdf_path":"/files/p.pdf","contract_pdf_path":"/files/c.pdf"}`)
	c := newWizard(t, b.server.URL, wizard.WithTarget("77"))
	fillBoaVista(t, c)
	advanceTo(t, c, 6)

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	result, err := Decode(c.LastResult())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, result.TotalValue)
	assert.Equal(t, "/files/p.pdf", result.DocumentURL)
	assert.Equal(t, "/files/c.pdf", result.ContractURL)
}

func TestBudget_SubdivisionNeedsTwoParts(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"total_value":1}`)
	c := newWizard(t, b.server.URL, wizard.WithTarget("77"))
	fillBoaVista(t, c)
	advanceTo(t, c, 4)

	require.NoError(t, c.Merge(wizard.Draft{"finalidade": PurposeDesmembramento, "qtd_partes": "1"}))
	res, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, "at least 2 parts", res["qtd_partes"])
	assert.Equal(t, 4, c.State().Step)

	require.NoError(t, c.Set("qtd_partes", "2"))
	res, err = c.Next()
	require.NoError(t, err)
	assert.True(t, res.Valid())
	assert.Equal(t, 5, c.State().Step)

	advanceTo(t, c, 6)
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(2), b.payload["partes"])
}

func TestBudget_NoTargetNeverCallsBackend(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	c := newWizard(t, b.server.URL)
	fillBoaVista(t, c)
	advanceTo(t, c, 6)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, wizard.ResultPrecondition, out.Result.Kind)
	assert.Equal(t, wizard.MsgNoTarget, c.Errors()[wizard.FieldSubmit])
	assert.Equal(t, wizard.State{Phase: wizard.PhaseStep, Step: 6}, c.State())
	assert.Equal(t, 0, b.Calls())
}

func TestBudget_RejectedSubmissionIsRetryable(t *testing.T) {
	b := newBackend(t, http.StatusUnprocessableEntity, `{"detail":[{"msg":"area_hectares must be positive"}]}`)
	c := newWizard(t, b.server.URL, wizard.WithTarget("77"))
	fillBoaVista(t, c)
	advanceTo(t, c, 6)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "area_hectares must be positive", out.Result.Message)
	assert.Equal(t, wizard.ResultValidationError, out.Result.Kind)
	assert.Equal(t, "area_hectares must be positive", c.Errors()[wizard.FieldSubmit])
	assert.Equal(t, wizard.PhaseStep, c.State().Phase)

	_, err = Decode(c.LastResult())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestBudget_StepValidation(t *testing.T) {
	v := wizard.NewTableValidator(Definition())

	tests := []struct {
		name  string
		step  int
		draft wizard.Draft
		want  wizard.ValidationResult
	}{
		{"empty client step", 1, Definition().InitialDraft(), wizard.ValidationResult{
			"cliente":   "enter the client name",
			"municipio": "select a municipality from the list",
		}},
		{"free text municipality", 1, wizard.Draft{"cliente": "Ana", "municipio": "Porto Velho"}, wizard.ValidationResult{
			"municipio": "select a municipality from the list",
		}},
		{"zero area", 2, wizard.Draft{"descricao_imovel": "Lote", "area_ha": "0"}, wizard.ValidationResult{
			"area_ha": "enter a valid area",
		}},
		{"blank description", 2, wizard.Draft{"descricao_imovel": "  ", "area_ha": 3}, wizard.ValidationResult{
			"descricao_imovel": "describe the property",
		}},
		{"characteristics never block", 3, wizard.Draft{}, wizard.ValidationResult{}},
		{"unknown purpose", 4, wizard.Draft{"finalidade": "usucapiao"}, wizard.ValidationResult{
			"finalidade": "select the purpose",
		}},
		{"unification needs no parts", 4, wizard.Draft{"finalidade": PurposeUnificacao}, wizard.ValidationResult{}},
		{"extras never block", 5, wizard.Draft{}, wizard.ValidationResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(tt.step, tt.draft))
		})
	}
}

func TestSelectMunicipalityWithoutIDBlocksStepOne(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("cliente", "Fazenda Boa Vista"))
	require.NoError(t, SelectMunicipality(c, models.Municipality{Name: "Porto Velho", Region: "RO"}))
	assert.Nil(t, c.Draft()["municipio_id"])

	res, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, "select a municipality from the list", res["municipio"])
	assert.Equal(t, 1, c.State().Step)
}

func TestBudget_SubmitTextualMunicipalityID(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"base_value":9500.00,"extras_value":500.00,"total_value":10000.00}`)
	c := newWizard(t, b.server.URL, wizard.WithTarget("77"))

	fillBoaVista(t, c)
	require.NoError(t, SelectMunicipality(c, models.Municipality{ID: "a1b2-c3", Name: "Porto Velho", Region: "RO"}))
	advanceTo(t, c, 6)

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, out.Result.Success, out.Result.Message)
	assert.Equal(t, "a1b2-c3", b.payload["municipio_id"])
}

func TestMunicipalityHelpers(t *testing.T) {
	c := New(nil)

	require.NoError(t, SelectMunicipality(c, models.Municipality{ID: "5", Name: "Cacoal", Region: "ro"}))
	d := c.Draft()
	assert.Equal(t, "Cacoal", d["municipio"])
	assert.Equal(t, int64(5), d["municipio_id"])
	assert.Equal(t, "RO", d["uf"])

	require.NoError(t, TypeMunicipality(c, "Caco"))
	d = c.Draft()
	assert.Equal(t, "Caco", d["municipio"])
	assert.Nil(t, d["municipio_id"])

	require.NoError(t, SelectMunicipality(c, models.Municipality{ID: "5", Name: "Cacoal", Region: "RO"}))
	require.NoError(t, SetState(c, "mt"))
	d = c.Draft()
	assert.Equal(t, "MT", d["uf"])
	assert.Equal(t, "", d["municipio"])
	assert.Nil(t, d["municipio_id"])
}
