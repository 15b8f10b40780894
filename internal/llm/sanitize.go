package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// RepairRecord is the one internal repair attempt applied when a model reply
// fails schema validation: unknown keys are removed, missing keys are filled
// with null, numeric fields arriving as strings are coerced, and token fields
// lose OCR-inserted spaces. Returns the repaired document plus a note per
// touched field.
func RepairRecord(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("repair: decode: %w", err)
	}

	var notes []string

	// unknown keys: the schema is closed, drop anything outside it
	for k := range m {
		if _, ok := fieldsByName[k]; !ok {
			delete(m, k)
			notes = append(notes, k+"(unknown)")
		}
	}

	for _, f := range Fields {
		v, present := m[f.Name]
		if !present {
			m[f.Name] = nil
			notes = append(notes, f.Name+"(missing)")
			continue
		}
		switch {
		case v == nil:
			// already null, nothing to repair
		case f.Numeric:
			num, ok := coerceNumber(v)
			if !ok {
				m[f.Name] = nil
				notes = append(notes, f.Name+"(not-numeric)")
			} else {
				m[f.Name] = num
			}
		default:
			s, ok := v.(string)
			if !ok {
				m[f.Name] = fmt.Sprintf("%v", v)
				notes = append(notes, f.Name+"(type)")
				s = m[f.Name].(string)
			}
			s = strings.TrimSpace(s)
			if f.NoSpaces {
				s = strings.ReplaceAll(s, " ", "")
			}
			if s == "" || strings.EqualFold(s, "null") {
				m[f.Name] = nil
				notes = append(notes, f.Name+"(empty)")
			} else {
				m[f.Name] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, notes, fmt.Errorf("repair: encode: %w", err)
	}
	if len(notes) > 0 {
		logger.Warn("llm.extract.repair_applied", "notes", notes)
	}
	return out, notes, nil
}

// coerceNumber accepts float64 (JSON numbers) and numeric strings in either
// "1.234,56" or "1,234.56" shape.
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), " ", "")
		if s == "" {
			return 0, false
		}
		lastComma := strings.LastIndex(s, ",")
		lastDot := strings.LastIndex(s, ".")
		if lastComma > lastDot {
			// comma is the decimal separator
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// DecodeRecord turns a validated reply into a Record, guaranteeing every
// declared key is present.
func DecodeRecord(raw []byte) (Record, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := EmptyRecord()
	for _, f := range Fields {
		if v, ok := m[f.Name]; ok {
			rec[f.Name] = v
		}
	}
	return rec, nil
}
