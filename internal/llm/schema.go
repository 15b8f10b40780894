package llm

// FieldSpec declares one invoice schema field. The set is fixed: the backend
// must never emit a key outside it, and every key must be present in every
// output (nil when the document holds no evidence).
type FieldSpec struct {
	Name       string
	Numeric    bool
	Date       bool
	Cumulative bool // later chunks append instead of losing to first-wins
	Feature    bool // required for the classification feature vector
	NoSpaces   bool // token fields whose internal spaces are OCR noise
}

// Fields is the invoice schema in canonical order.
var Fields = []FieldSpec{
	{Name: "FECHA_DOCUMENTO", Date: true},
	{Name: "DIRECCION", Cumulative: true},
	{Name: "MODELO_HOMOLOGADO_ANT"},
	{Name: "SUBSIDIO", Numeric: true},
	{Name: "AÑO", Numeric: true},
	{Name: "SUBTOTAL", Numeric: true},
	{Name: "CLASE", Feature: true},
	{Name: "TOTAL", Numeric: true, Feature: true},
	{Name: "CILINDRAJE"},
	{Name: "MODELO"},
	{Name: "MODELO_REGISTRADO_SRI"},
	{Name: "RAMV_CPN", NoSpaces: true},
	{Name: "RUEDAS", Numeric: true, Feature: true},
	{Name: "DESCUENTO", Numeric: true},
	{Name: "NUMERO_FACTURA"},
	{Name: "COLOR"},
	{Name: "MOTOR", NoSpaces: true},
	{Name: "NOMBRE_CLIENTE"},
	{Name: "CAPACIDAD", Numeric: true, Feature: true},
	{Name: "MARCA", Feature: true},
	{Name: "RUC"},
	{Name: "COMBUSTIBLE", Feature: true},
	{Name: "EJES", Numeric: true},
	{Name: "TIPO", Feature: true},
	{Name: "IVA", Numeric: true},
	{Name: "CONCESIONARIA"},
	{Name: "TONELAJE", Numeric: true},
	{Name: "VIN_CHASIS", NoSpaces: true},
	{Name: "PAIS_ORIGEN"},
}

var fieldsByName = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f
	}
	return m
}()

// FieldByName returns the FieldSpec for a declared field.
func FieldByName(name string) (FieldSpec, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// EmptyRecord returns a record with every declared key set to nil.
func EmptyRecord() Record {
	rec := make(Record, len(Fields))
	for _, f := range Fields {
		rec[f.Name] = nil
	}
	return rec
}

// BuildInvoiceJSONSchema returns the strict JSON-Schema passed to the model
// as a structured-output constraint and used locally to validate its reply.
// All keys are required and nullable; additionalProperties is off so the
// model cannot invent fields.
func BuildInvoiceJSONSchema() map[string]any {
	props := make(map[string]any, len(Fields))
	for _, f := range Fields {
		if f.Numeric {
			props[f.Name] = map[string]any{"type": []string{"number", "null"}}
		} else {
			props[f.Name] = map[string]any{"type": []string{"string", "null"}}
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             FieldNames(),
	}
}
