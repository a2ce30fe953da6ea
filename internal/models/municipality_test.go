package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMunicipality_UnmarshalID(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		id    MunicipalityID
		value interface{}
	}{
		{"numeric", `{"id":1100205,"name":"Porto Velho"}`, "1100205", int64(1100205)},
		{"textual", `{"id":"a1b2-c3","name":"Porto Velho"}`, "a1b2-c3", "a1b2-c3"},
		{"numeric text", `{"id":" 42 ","nome":"Cacoal"}`, "42", int64(42)},
		{"missing", `{"name":"Porto Velho","region":"RO"}`, "", nil},
		{"null", `{"id":null,"name":"Porto Velho"}`, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Municipality
			require.NoError(t, json.Unmarshal([]byte(tt.body), &m))
			assert.Equal(t, tt.id, m.ID)
			assert.Equal(t, tt.id.Valid(), tt.value != nil)
			assert.Equal(t, tt.value, m.ID.Value())
		})
	}
}

func TestMunicipality_BadIDFailsOnlyThatDecode(t *testing.T) {
	var m Municipality
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &m))
}

func TestMunicipalityID_Marshal(t *testing.T) {
	data, err := json.Marshal([]Municipality{
		{ID: "1100205", Name: "Porto Velho"},
		{ID: "a1b2-c3", Name: "Ariquemes"},
		{Name: "Sem id"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":1100205,"name":"Porto Velho","region":""},
		{"id":"a1b2-c3","name":"Ariquemes","region":""},
		{"id":null,"name":"Sem id","region":""}
	]`, string(data))
}
