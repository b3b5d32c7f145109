package schemas

import (
	"fmt"
	"strconv"

	json "github.com/json-iterator/go"
)

// FieldAssignment pairs an opaque field identifier with the value to write.
// How the identifier is interpreted (id, name, positional index) is decided
// by the resolver, not by the caller.
type FieldAssignment struct {
	Identifier string `json:"id"`
	Value      string `json:"value"`
}

// UnmarshalJSON accepts {"id": "...", "value": "..."} as well as the
// positional {"index": 3, "value": "..."} form. Non-string values are
// rendered with their JSON text.
func (f *FieldAssignment) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         json.RawMessage `json:"id"`
		Identifier json.RawMessage `json:"identifier"`
		Index      *int            `json:"index"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid field assignment: %w", err)
	}

	switch {
	case len(raw.ID) > 0:
		f.Identifier = rawToString(raw.ID)
	case len(raw.Identifier) > 0:
		f.Identifier = rawToString(raw.Identifier)
	case raw.Index != nil:
		if *raw.Index < 0 {
			return fmt.Errorf("invalid field assignment: negative index %d", *raw.Index)
		}
		f.Identifier = strconv.Itoa(*raw.Index)
	default:
		return fmt.Errorf("invalid field assignment: missing id or index")
	}
	f.Value = rawToString(raw.Value)
	return nil
}

// rawToString unquotes JSON strings and keeps any other literal verbatim.
// null becomes the empty string.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Outcome is the terminal state of a single field assignment.
type Outcome string

const (
	OutcomeFilled   Outcome = "filled"
	OutcomeNotFound Outcome = "not_found"
	OutcomeErrored  Outcome = "errored"
)

// FieldResult records what happened to one assignment.
type FieldResult struct {
	Assignment FieldAssignment `json:"assignment"`
	Outcome    Outcome         `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
}

// FillReport aggregates the outcomes of a batch. Every assignment of the
// batch is represented exactly once, so Total always equals the batch size.
type FillReport struct {
	Filled   int           `json:"filled"`
	NotFound int           `json:"notFound"`
	Errored  int           `json:"errored"`
	Errors   []string      `json:"errors,omitempty"`
	Results  []FieldResult `json:"results"`
}

// Total returns Filled + NotFound + Errored.
func (r FillReport) Total() int {
	return r.Filled + r.NotFound + r.Errored
}

// Record appends a result and updates the counters.
func (r *FillReport) Record(res FieldResult) {
	switch res.Outcome {
	case OutcomeFilled:
		r.Filled++
	case OutcomeNotFound:
		r.NotFound++
	default:
		res.Outcome = OutcomeErrored
		r.Errored++
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", res.Assignment.Identifier, res.Reason))
	}
	r.Results = append(r.Results, res)
}
