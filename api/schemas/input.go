package schemas

import (
	"bytes"
	"fmt"

	json "github.com/json-iterator/go"
)

// batchItems returns the elements of a batch document: either a bare JSON
// array or an object wrapping the array in "data".
func batchItems(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		if wrapper.Data == nil {
			return nil, fmt.Errorf(`object input must carry a "data" array`)
		}
		return wrapper.Data, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// orderedFields walks a JSON object in document order. Values are rendered
// like assignment values: strings unquoted, other literals verbatim.
func orderedFields(raw json.RawMessage, fn func(key, value string)) error {
	iter := json.ConfigCompatibleWithStandardLibrary.BorrowIterator(raw)
	defer json.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	if iter.WhatIsNext() != json.ObjectValue {
		return fmt.Errorf("expected a JSON object, got %s", bytes.TrimSpace(raw))
	}
	iter.ReadMapCB(func(it *json.Iterator, key string) bool {
		fn(key, rawToString(it.SkipAndReturnBytes()))
		return true
	})
	return iter.Error
}

func isAssignmentForm(raw json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, hasValue := probe["value"]
	_, hasID := probe["id"]
	_, hasIdentifier := probe["identifier"]
	_, hasIndex := probe["index"]
	return hasValue && (hasID || hasIdentifier || hasIndex) && len(probe) == 2
}

// ParseAssignments reads a form fill batch. Each element is either an
// explicit assignment ({"id": ..., "value": ...} or {"index": ..., "value": ...})
// or a map of identifier to value, expanded in key order.
func ParseAssignments(data []byte) ([]FieldAssignment, error) {
	items, err := batchItems(data)
	if err != nil {
		return nil, fmt.Errorf("invalid assignment batch: %w", err)
	}
	var out []FieldAssignment
	for i, raw := range items {
		if isAssignmentForm(raw) {
			var a FieldAssignment
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, a)
			continue
		}
		err := orderedFields(raw, func(key, value string) {
			out = append(out, FieldAssignment{Identifier: key, Value: value})
		})
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out, nil
}

// ParseRows reads a grid batch: one object of field values per row.
func ParseRows(data []byte) ([]map[string]string, error) {
	items, err := batchItems(data)
	if err != nil {
		return nil, fmt.Errorf("invalid row batch: %w", err)
	}
	rows := make([]map[string]string, 0, len(items))
	for i, raw := range items {
		row := make(map[string]string)
		if err := orderedFields(raw, func(key, value string) { row[key] = value }); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
