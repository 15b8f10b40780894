// Package normalize post-processes extracted records: canonical date shape,
// decimal sanity on monetary fields, and identifier checks. Findings are
// annotations, never rejections; the record always survives.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/verifactura/verifactura/internal/llm"
)

// Warning annotates one field without invalidating the record.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Field + ": " + w.Message
}

// dateLayouts lists the shapes invoices actually arrive in, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"02/01/06",
	"January 2, 2006",
	"2 de January de 2006",
}

// Record cleans a merged record in place and reports what it touched or
// could not trust.
func Record(rec llm.Record) []Warning {
	var warns []Warning

	warns = append(warns, normalizeDate(rec)...)
	warns = append(warns, checkVIN(rec)...)
	warns = append(warns, checkAmounts(rec)...)
	return warns
}

func normalizeDate(rec llm.Record) []Warning {
	v, _ := rec["FECHA_DOCUMENTO"].(string)
	if v == "" {
		return nil
	}
	s := strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			rec["FECHA_DOCUMENTO"] = t.Format("2006-01-02")
			return nil
		}
	}
	return []Warning{{Field: "FECHA_DOCUMENTO", Message: fmt.Sprintf("unrecognized date %q", s)}}
}

// checkVIN flags VINs that cannot be real: wrong length or characters the
// standard excludes (I, O, Q). OCR confusions show up here constantly.
func checkVIN(rec llm.Record) []Warning {
	v, _ := rec["VIN_CHASIS"].(string)
	if v == "" {
		return nil
	}
	vin := strings.ToUpper(strings.TrimSpace(v))
	rec["VIN_CHASIS"] = vin
	if len(vin) != 17 {
		return []Warning{{Field: "VIN_CHASIS", Message: fmt.Sprintf("length %d, expected 17", len(vin))}}
	}
	if strings.ContainsAny(vin, "IOQ") {
		return []Warning{{Field: "VIN_CHASIS", Message: "contains I, O or Q, likely an OCR confusion"}}
	}
	return nil
}

// amountFields are the monetary columns checked for decimal sanity.
var amountFields = []string{"SUBTOTAL", "IVA", "DESCUENTO", "SUBSIDIO", "TOTAL"}

func checkAmounts(rec llm.Record) []Warning {
	var warns []Warning
	decimals := map[string]decimal.Decimal{}
	for _, name := range amountFields {
		f, ok := rec[name].(float64)
		if !ok {
			continue
		}
		d := decimal.NewFromFloat(f)
		if d.IsNegative() {
			warns = append(warns, Warning{Field: name, Message: "negative amount"})
			continue
		}
		decimals[name] = d
	}

	// TOTAL should be reachable from its parts when all of them are present
	sub, okSub := decimals["SUBTOTAL"]
	iva, okIVA := decimals["IVA"]
	total, okTotal := decimals["TOTAL"]
	if okSub && okIVA && okTotal {
		expected := sub.Add(iva)
		if d, ok := decimals["DESCUENTO"]; ok {
			expected = expected.Sub(d)
		}
		if d, ok := decimals["SUBSIDIO"]; ok {
			expected = expected.Sub(d)
		}
		tolerance := decimal.NewFromFloat(0.05)
		if expected.Sub(total).Abs().GreaterThan(tolerance) {
			warns = append(warns, Warning{
				Field:   "TOTAL",
				Message: fmt.Sprintf("total %s does not match subtotal+iva-descuento-subsidio %s", total, expected),
			})
		}
	}
	return warns
}
