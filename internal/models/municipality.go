// internal/models/municipality.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// MunicipalityID is the stable identifier of a lookup match, kept as the
// resolver sent it. Numeric ids stay numeric on the wire; the zero value
// means the match carried no id.
type MunicipalityID string

func (id MunicipalityID) Valid() bool {
	return id != ""
}

// Value is the id as a draft value: nil when absent, int64 when numeric.
func (id MunicipalityID) Value() interface{} {
	if !id.Valid() {
		return nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	return string(id)
}

func (id MunicipalityID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value())
}

func (id *MunicipalityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MunicipalityID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = MunicipalityID(n.String())
	return nil
}

// Municipality is one match of the municipality lookup.
type Municipality struct {
	ID                 MunicipalityID `json:"id"`
	Name               string         `json:"name"`
	Region             string         `json:"region"`
	ValuationFloorLow  *float64       `json:"valuation_floor_low,omitempty"`
	ValuationFloorHigh *float64       `json:"valuation_floor_high,omitempty"`
}

// UnmarshalJSON accepts both the English contract and the portal's
// legacy {nome, estado, uf} shape.
func (m *Municipality) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                 MunicipalityID `json:"id"`
		Name               string         `json:"name"`
		Nome               string         `json:"nome"`
		Region             string         `json:"region"`
		Estado             string         `json:"estado"`
		UF                 string         `json:"uf"`
		ValuationFloorLow  *float64       `json:"valuation_floor_low"`
		ValuationFloorHigh *float64       `json:"valuation_floor_high"`
		VTNMin             *float64       `json:"vtn_min"`
		VTNMax             *float64       `json:"vtn_max"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = raw.ID
	m.Name = firstNonEmpty(raw.Name, raw.Nome)
	m.Region = firstNonEmpty(raw.Region, raw.Estado, raw.UF)
	m.ValuationFloorLow = raw.ValuationFloorLow
	if m.ValuationFloorLow == nil {
		m.ValuationFloorLow = raw.VTNMin
	}
	m.ValuationFloorHigh = raw.ValuationFloorHigh
	if m.ValuationFloorHigh == nil {
		m.ValuationFloorHigh = raw.VTNMax
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
