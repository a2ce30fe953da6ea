// internal/models/proposal.go
package models

import "encoding/json"

// ProposalResult is the answer of POST /api/propostas/generate/{projectId}.
type ProposalResult struct {
	BaseValue   float64 `json:"base_value"`
	ExtrasValue float64 `json:"extras_value"`
	TotalValue  float64 `json:"total_value"`
	DocumentURL string  `json:"document_url,omitempty"`
	ContractURL string  `json:"contract_url,omitempty"`
}

// UnmarshalJSON accepts both the English names and the legacy
// valor_base/extras/total/pdf_path/contract_pdf_path names.
func (p *ProposalResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseValue       *float64 `json:"base_value"`
		ValorBase       *float64 `json:"valor_base"`
		ExtrasValue     *float64 `json:"extras_value"`
		Extras          *float64 `json:"extras"`
		TotalValue      *float64 `json:"total_value"`
		Total           *float64 `json:"total"`
		DocumentURL     string   `json:"document_url"`
		PDFPath         string   `json:"pdf_path"`
		ContractURL     string   `json:"contract_url"`
		ContractPDFPath string   `json:"contract_pdf_path"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.BaseValue = firstFloat(raw.BaseValue, raw.ValorBase)
	p.ExtrasValue = firstFloat(raw.ExtrasValue, raw.Extras)
	p.TotalValue = firstFloat(raw.TotalValue, raw.Total)
	p.DocumentURL = firstNonEmpty(raw.DocumentURL, raw.PDFPath)
	p.ContractURL = firstNonEmpty(raw.ContractURL, raw.ContractPDFPath)
	return nil
}

func firstFloat(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// ProposalRecord is one row of the proposal history of a project.
type ProposalRecord struct {
	ID          int64   `json:"id"`
	Area        float64 `json:"area"`
	Total       float64 `json:"total"`
	CreatedAt   string  `json:"created_at"`
	PDFURL      string  `json:"pdf_url,omitempty"`
	ContractURL string  `json:"contract_url,omitempty"`
}
