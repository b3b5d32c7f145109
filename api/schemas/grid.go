package schemas

// RowInsertionRequest asks the page context to write Fields into one grid row.
//
// RowIndex is the row's ordinal within a multi-row operation: 0 targets an
// existing (first) row, anything greater requires a new row to be created
// first. CorrelationID pairs the request with its result across the bridge.
type RowInsertionRequest struct {
	CorrelationID int64             `json:"correlationId"`
	RowIndex      int               `json:"rowIndex"`
	GridIndex     int               `json:"gridIndex,omitempty"`
	Selector      string            `json:"selector,omitempty"`
	Fields        map[string]string `json:"fields"`
}

// RowStatus is the terminal status of a row insertion.
type RowStatus string

const (
	RowSuccess RowStatus = "success"
	RowFailure RowStatus = "failure"
)

// RowInsertionResult is produced once per request when the insertion attempt
// terminates. CorrelationID and RowIndex always echo the request.
type RowInsertionResult struct {
	CorrelationID int64     `json:"correlationId"`
	RowIndex      int       `json:"rowIndex"`
	Status        RowStatus `json:"status"`
	// Method names the component method that accepted the data (success only).
	Method string `json:"method,omitempty"`
	// Message carries the last error (failure only).
	Message string `json:"message,omitempty"`
}

// Succeeded reports whether the row was written.
func (r RowInsertionResult) Succeeded() bool {
	return r.Status == RowSuccess
}

// NewRowSuccess builds a success result echoing the request identity.
func NewRowSuccess(req RowInsertionRequest, method string) RowInsertionResult {
	return RowInsertionResult{
		CorrelationID: req.CorrelationID,
		RowIndex:      req.RowIndex,
		Status:        RowSuccess,
		Method:        method,
	}
}

// NewRowFailure builds a failure result echoing the request identity.
func NewRowFailure(req RowInsertionRequest, message string) RowInsertionResult {
	return RowInsertionResult{
		CorrelationID: req.CorrelationID,
		RowIndex:      req.RowIndex,
		Status:        RowFailure,
		Message:       message,
	}
}

// RowBatchReport summarizes a serialized multi-row insertion.
type RowBatchReport struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []RowInsertionResult `json:"results"`
}

// Record appends a row result and updates the counters.
func (r *RowBatchReport) Record(res RowInsertionResult) {
	if res.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.Results = append(r.Results, res)
}
