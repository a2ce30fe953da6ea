package generateproposal

// Input carries the budget draft collected by an upstream form task.
type Input struct {
	ProjectID string                 `json:"projectId"`
	Draft     map[string]interface{} `json:"budget"`
}

type Output struct {
	ProposalGenerated bool    `json:"proposalGenerated"`
	BaseValue         float64 `json:"baseValue"`
	ExtrasValue       float64 `json:"extrasValue"`
	TotalValue        float64 `json:"totalValue"`
	DocumentURL       string  `json:"documentUrl,omitempty"`
	ContractURL       string  `json:"contractUrl,omitempty"`
}
