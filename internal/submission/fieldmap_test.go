package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoincra-portal/internal/wizard"
)

func TestFieldMap_Serialize(t *testing.T) {
	fm := FieldMap{Fields: []Field{
		{Source: "cliente", Kind: KindString},
		{Source: "area_ha", Target: "area_hectares", Kind: KindNumber},
		{Source: "qtd_partes", Target: "partes", Kind: KindInt,
			NullUnless: &Condition{Field: "finalidade", Equals: "desmembramento"}},
		{Source: "estaqueamento_km", Kind: KindNumber, Default: 0.0},
		{Source: "ccir_atualizado", Kind: KindBool, Default: false},
		{Source: "municipio_id", Kind: KindRaw},
	}}

	tests := []struct {
		name  string
		draft wizard.Draft
		want  map[string]interface{}
	}{
		{
			name: "renames and coerces",
			draft: wizard.Draft{
				"cliente": "  Ana ", "area_ha": "12.5", "finalidade": "desmembramento",
				"qtd_partes": "3", "estaqueamento_km": "", "ccir_atualizado": true, "municipio_id": 7,
			},
			want: map[string]interface{}{
				"cliente": "Ana", "area_hectares": 12.5, "partes": int64(3),
				"estaqueamento_km": 0.0, "ccir_atualizado": true, "municipio_id": 7,
			},
		},
		{
			name: "null unless condition holds",
			draft: wizard.Draft{
				"cliente": "Ana", "area_ha": 10, "finalidade": "averbacao", "qtd_partes": "4",
			},
			want: map[string]interface{}{
				"cliente": "Ana", "area_hectares": 10.0, "partes": nil,
				"estaqueamento_km": 0.0, "ccir_atualizado": false, "municipio_id": nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fm.Serialize(tt.draft)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "area_ha")
			assert.NotContains(t, got, "finalidade")
		})
	}
}

func TestFieldMap_CoercionErrors(t *testing.T) {
	fm := FieldMap{Fields: []Field{{Source: "area_ha", Kind: KindNumber}}}
	_, err := fm.Serialize(wizard.Draft{"area_ha": "doze"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "area_ha")

	fm = FieldMap{Fields: []Field{{Source: "partes", Kind: KindInt}}}
	_, err = fm.Serialize(wizard.Draft{"partes": 2.5})
	assert.Error(t, err)

	fm = FieldMap{Fields: []Field{{Source: "ok", Kind: KindBool}}}
	_, err = fm.Serialize(wizard.Draft{"ok": "talvez"})
	assert.Error(t, err)
}

func TestFieldMap_Passthrough(t *testing.T) {
	fm := FieldMap{
		Passthrough: true,
		Fields:      []Field{{Source: "area_ha", Target: "area_hectares", Kind: KindNumber}},
	}
	got, err := fm.Serialize(wizard.Draft{"area_ha": "3", "cliente": "Ana", "extra": []interface{}{1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"area_hectares": 3.0,
		"cliente":       "Ana",
		"extra":         []interface{}{1},
	}, got)
}
