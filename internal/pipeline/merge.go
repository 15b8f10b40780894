package pipeline

import "github.com/verifactura/verifactura/internal/llm"

// MergeRecords folds per-chunk records into one. For every field the first
// non-null value in chunk order wins; cumulative fields (DIRECCION) instead
// append each later non-null value, so addresses split across pages survive.
func MergeRecords(records []llm.Record) llm.Record {
	merged := llm.EmptyRecord()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, f := range llm.Fields {
			v, ok := rec[f.Name]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			cur := merged[f.Name]
			switch {
			case cur == nil:
				merged[f.Name] = v
			case f.Cumulative:
				prev, okPrev := cur.(string)
				next, okNext := v.(string)
				if okPrev && okNext {
					merged[f.Name] = prev + " " + next
				}
			}
		}
	}
	return merged
}
