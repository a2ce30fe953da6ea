// Package budget is the six step georeferencing budget wizard.
package budget

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/validation"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/submission"
	"geoincra-portal/internal/wizard"
)

const (
	Kind = "budget"

	// SubmitPath receives the project id.
	SubmitPath = "/api/propostas/generate/%s"

	DefaultState = "RO"

	PurposeAverbacao      = "averbacao"
	PurposeDesmembramento = "desmembramento"
	PurposeUnificacao     = "unificacao"
	PurposeTerraLegal     = "terra_legal"
)

//go:embed budget.yaml
var definitionYAML []byte

//go:embed contract.json
var contractJSON string

var (
	definition = wizard.MustParseDefinition(definitionYAML)
	contract   = validation.MustCompile(contractJSON)
)

// Fields is the wire mapping of the budget draft.
var Fields = submission.FieldMap{Fields: []submission.Field{
	{Source: "cliente", Kind: submission.KindString},
	{Source: "municipio", Kind: submission.KindString},
	{Source: "municipio_id", Kind: submission.KindRaw},
	{Source: "descricao_imovel", Kind: submission.KindString},
	{Source: "area_ha", Target: "area_hectares", Kind: submission.KindNumber},
	{Source: "confrontacao_rios", Kind: submission.KindBool, Default: false},
	{Source: "proprietario_acompanha", Kind: submission.KindBool, Default: false},
	{Source: "mais_50_mata", Target: "mata_mais_50", Kind: submission.KindBool, Default: false},
	{Source: "finalidade", Kind: submission.KindString},
	{Source: "qtd_partes", Target: "partes", Kind: submission.KindInt, Default: int64(0),
		NullUnless: &submission.Condition{Field: "finalidade", Equals: PurposeDesmembramento}},
	{Source: "ccir_atualizado", Kind: submission.KindBool, Default: false},
	{Source: "itr_atualizado", Kind: submission.KindBool, Default: false},
	{Source: "certificado_digital", Kind: submission.KindBool, Default: false},
	{Source: "estaqueamento_km", Kind: submission.KindNumber, Default: 0.0},
	{Source: "notificacao_confrontantes", Kind: submission.KindNumber, Default: 0.0},
}}

func Definition() *wizard.Definition {
	return definition
}

// NewSubmitter posts budget drafts to the proposal generation endpoint.
func NewSubmitter(client *apihttp.Client, opts ...submission.Option) *submission.Adapter {
	opts = append([]submission.Option{submission.WithContract(contract)}, opts...)
	return submission.NewAdapter(client, SubmitPath, Fields, opts...)
}

func New(submitter wizard.Submitter, opts ...wizard.Option) *wizard.Controller {
	return wizard.NewController(definition, submitter, opts...)
}

var ErrNoResult = errors.New("no successful submission")

// Decode reads the proposal totals out of a successful result.
func Decode(result *wizard.SubmissionResult) (*models.ProposalResult, error) {
	if result == nil || !result.Success {
		return nil, ErrNoResult
	}
	var out models.ProposalResult
	if len(result.Body) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(result.Body, &out); err != nil {
		return nil, fmt.Errorf("decode proposal result: %w", err)
	}
	return &out, nil
}
