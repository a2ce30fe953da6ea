package budget

import (
	"strings"

	"geoincra-portal/internal/models"
	"geoincra-portal/internal/wizard"
)

// SelectMunicipality stores a match picked from the lookup list. A match
// without an id leaves municipio_id empty, so step 1 stays blocked.
func SelectMunicipality(c *wizard.Controller, m models.Municipality) error {
	state := strings.ToUpper(strings.TrimSpace(m.Region))
	if state == "" {
		state = DefaultState
	}
	return c.Merge(wizard.Draft{
		"municipio":    m.Name,
		"municipio_id": m.ID.Value(),
		"uf":           state,
	})
}

// TypeMunicipality records free text; the previous selection no longer applies.
func TypeMunicipality(c *wizard.Controller, text string) error {
	return c.Merge(wizard.Draft{
		"municipio":    text,
		"municipio_id": nil,
	})
}

// SetState switches the lookup state and drops the selected municipality.
func SetState(c *wizard.Controller, state string) error {
	return c.Merge(wizard.Draft{
		"uf":           strings.ToUpper(strings.TrimSpace(state)),
		"municipio":    "",
		"municipio_id": nil,
	})
}
