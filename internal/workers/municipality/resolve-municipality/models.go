package resolvemunicipality

import "geoincra-portal/internal/models"

type Input struct {
	Query string `json:"query"`
	State string `json:"state,omitempty"`
}

type Output struct {
	Municipalities []models.Municipality `json:"municipalities"`
	Count          int                   `json:"municipalityCount"`
	// Resolved is set when exactly one municipality matched.
	Resolved *models.Municipality `json:"resolvedMunicipality,omitempty"`
}
