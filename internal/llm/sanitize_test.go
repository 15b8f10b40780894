package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repairToMap(t *testing.T, in map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	out, _, err := RepairRecord(raw, nil)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func TestRepairRecordFillsAndDrops(t *testing.T) {
	m := repairToMap(t, map[string]any{
		"MARCA":    "TOYOTA",
		"INVENTED": "x",
	})

	assert.NotContains(t, m, "INVENTED")
	assert.Equal(t, "TOYOTA", m["MARCA"])
	assert.Len(t, m, len(Fields))
	assert.Nil(t, m["TOTAL"])
}

func TestRepairRecordCoercesNumerics(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"plain number survives", 12500.5, 12500.5},
		{"us format string", "12,500.50", 12500.50},
		{"latin format string", "12.500,50", 12500.50},
		{"garbage becomes null", "N/A", nil},
		{"empty string becomes null", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := repairToMap(t, map[string]any{"TOTAL": tt.in})
			assert.Equal(t, tt.want, m["TOTAL"])
		})
	}
}

func TestRepairRecordStripsTokenSpaces(t *testing.T) {
	m := repairToMap(t, map[string]any{
		"VIN_CHASIS": "8LB ETF3B 7N00 12345",
		"MOTOR":      "T00 123 456",
		"MARCA":      "  CHEVROLET  ",
	})
	assert.Equal(t, "8LBETF3B7N0012345", m["VIN_CHASIS"])
	assert.Equal(t, "T00123456", m["MOTOR"])
	// non-token strings only get trimmed
	assert.Equal(t, "CHEVROLET", m["MARCA"])
}

func TestRepairRecordNullStrings(t *testing.T) {
	m := repairToMap(t, map[string]any{"COLOR": "null", "TIPO": "NULL"})
	assert.Nil(t, m["COLOR"])
	assert.Nil(t, m["TIPO"])
}

func TestRepairedOutputPassesSchema(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"MARCA":   "KIA",
		"TOTAL":   "23.990,00",
		"RUEDAS":  "4",
		"EXTRA":   "drop me",
		"MODELO":  " SPORTAGE ",
		"CHASSIS": "not a real key",
	})
	require.NoError(t, err)

	repaired, notes, err := RepairRecord(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, notes)
	assert.NoError(t, ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), repaired))
}

func TestDecodeRecordCompletesKeys(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"MARCA":"MAZDA"}`))
	require.NoError(t, err)
	assert.Len(t, rec, len(Fields))
	assert.Equal(t, "MAZDA", rec["MARCA"])
	assert.Nil(t, rec["VIN_CHASIS"])
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1500.0, 1500, true},
		{"1500", 1500, true},
		{"1.500", 1500, true},
		{"1,500", 1500, true},
		{"1.500,25", 1500.25, true},
		{"1,500.25", 1500.25, true},
		{"  42 ", 42, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %v", tt.in)
		}
	}
}
