// Package proposal is the two step wizard that turns an already assembled
// payload into the proposal and contract documents, plus the history of
// proposals generated for a project.
package proposal

import (
	_ "embed"
	"errors"

	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/submission"
	"geoincra-portal/internal/wizard"
)

const (
	Kind       = "proposal"
	SubmitPath = "/api/propostas/generate/%s"

	MsgNoPayload = "proposal data not found"
)

//go:embed proposal.yaml
var definitionYAML []byte

var definition = wizard.MustParseDefinition(definitionYAML)

func Definition() *wizard.Definition {
	return definition
}

// RequirePayload blocks submission of an empty draft.
func RequirePayload(targetID string, draft wizard.Draft) error {
	if len(draft) == 0 {
		return errors.New(MsgNoPayload)
	}
	return nil
}

// NewSubmitter forwards the draft unchanged.
func NewSubmitter(client *apihttp.Client, opts ...submission.Option) *submission.Adapter {
	return submission.NewAdapter(client, SubmitPath, submission.FieldMap{Passthrough: true}, opts...)
}

// New starts the wizard over payload. Both the target and a non-empty
// payload are required to submit.
func New(submitter wizard.Submitter, payload wizard.Draft, opts ...wizard.Option) *wizard.Controller {
	opts = append([]wizard.Option{wizard.WithPreconditions(wizard.RequireTarget, RequirePayload)}, opts...)
	c := wizard.NewController(definition, submitter, opts...)
	if len(payload) > 0 {
		c.Merge(payload)
	}
	return c
}
