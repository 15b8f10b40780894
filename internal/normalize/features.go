package normalize

import "github.com/verifactura/verifactura/internal/llm"

// featureOrder is the classifier's input contract. Position is meaning;
// reordering breaks the model silently.
var featureOrder = []string{
	"MARCA",
	"TIPO",
	"CLASE",
	"CAPACIDAD",
	"COMBUSTIBLE",
	"RUEDAS",
	"TOTAL",
}

// FeatureNames returns the classifier feature columns in wire order.
func FeatureNames() []string {
	out := make([]string, len(featureOrder))
	copy(out, featureOrder)
	return out
}

// Features projects a record onto the classifier's fixed-order vector.
// Missing fields stay null; the prediction service decides how to impute.
func Features(rec llm.Record) []any {
	out := make([]any, len(featureOrder))
	for i, name := range featureOrder {
		out[i] = rec[name]
	}
	return out
}

// FeatureMap is the named form of the same projection, used by the HTTP
// surface where the prediction payload is a JSON object.
func FeatureMap(rec llm.Record) map[string]any {
	out := make(map[string]any, len(featureOrder))
	for _, name := range featureOrder {
		out[name] = rec[name]
	}
	return out
}
