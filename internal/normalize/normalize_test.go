package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifactura/verifactura/internal/llm"
)

func record(kv map[string]any) llm.Record {
	r := llm.EmptyRecord()
	for k, v := range kv {
		r[k] = v
	}
	return r
}

func TestRecordNormalizesDates(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "2024-03-15", "2024-03-15"},
		{"slashed day first", "15/03/2024", "2024-03-15"},
		{"dashed day first", "15-03-2024", "2024-03-15"},
		{"short year", "15/03/24", "2024-03-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(map[string]any{"FECHA_DOCUMENTO": tt.in})
			warns := Record(rec)
			assert.Empty(t, warns)
			assert.Equal(t, tt.want, rec["FECHA_DOCUMENTO"])
		})
	}
}

func TestRecordWarnsOnBadDate(t *testing.T) {
	rec := record(map[string]any{"FECHA_DOCUMENTO": "el quince de marzo"})
	warns := Record(rec)
	require.Len(t, warns, 1)
	assert.Equal(t, "FECHA_DOCUMENTO", warns[0].Field)
	// original value is kept for a human to look at
	assert.Equal(t, "el quince de marzo", rec["FECHA_DOCUMENTO"])
}

func TestRecordVINChecks(t *testing.T) {
	tests := []struct {
		name      string
		vin       string
		wantWarn  bool
		wantValue string
	}{
		{"valid vin", "8LBETF3B7N0012345", false, "8LBETF3B7N0012345"},
		{"lowercased gets uppercased", "8lbetf3b7n0012345", false, "8LBETF3B7N0012345"},
		{"short vin", "8LBETF3B", true, "8LBETF3B"},
		{"forbidden letters", "8LBETF3B7O0012345", true, "8LBETF3B7O0012345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(map[string]any{"VIN_CHASIS": tt.vin})
			warns := Record(rec)
			if tt.wantWarn {
				require.Len(t, warns, 1)
				assert.Equal(t, "VIN_CHASIS", warns[0].Field)
			} else {
				assert.Empty(t, warns)
			}
			assert.Equal(t, tt.wantValue, rec["VIN_CHASIS"])
		})
	}
}

func TestRecordAmountChecks(t *testing.T) {
	t.Run("consistent totals", func(t *testing.T) {
		rec := record(map[string]any{
			"SUBTOTAL": 20000.0, "IVA": 3000.0, "DESCUENTO": 500.0, "TOTAL": 22500.0,
		})
		assert.Empty(t, Record(rec))
	})
	t.Run("mismatched total", func(t *testing.T) {
		rec := record(map[string]any{
			"SUBTOTAL": 20000.0, "IVA": 3000.0, "TOTAL": 19000.0,
		})
		warns := Record(rec)
		require.Len(t, warns, 1)
		assert.Equal(t, "TOTAL", warns[0].Field)
	})
	t.Run("negative amount", func(t *testing.T) {
		rec := record(map[string]any{"DESCUENTO": -100.0})
		warns := Record(rec)
		require.Len(t, warns, 1)
		assert.Equal(t, "DESCUENTO", warns[0].Field)
	})
	t.Run("partial amounts are not checked", func(t *testing.T) {
		rec := record(map[string]any{"TOTAL": 19000.0})
		assert.Empty(t, Record(rec))
	})
}

func TestFeaturesOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"MARCA", "TIPO", "CLASE", "CAPACIDAD", "COMBUSTIBLE", "RUEDAS", "TOTAL"},
		FeatureNames(),
	)

	rec := record(map[string]any{
		"MARCA": "TOYOTA", "TIPO": "CAMIONETA", "CLASE": "DOBLE CABINA",
		"CAPACIDAD": 5.0, "COMBUSTIBLE": "DIESEL", "RUEDAS": 4.0, "TOTAL": 38990.0,
	})
	vec := Features(rec)
	require.Len(t, vec, 7)
	assert.Equal(t, "TOYOTA", vec[0])
	assert.Equal(t, 38990.0, vec[6])

	fm := FeatureMap(rec)
	assert.Len(t, fm, 7)
	assert.Equal(t, "DIESEL", fm["COMBUSTIBLE"])
	assert.NotContains(t, fm, "COLOR")
}

func TestFeaturesMissingStayNil(t *testing.T) {
	vec := Features(llm.EmptyRecord())
	require.Len(t, vec, 7)
	for _, v := range vec {
		assert.Nil(t, v)
	}
}
