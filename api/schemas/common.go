package schemas

// -- Common Schemas --

// Severity classifies a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

// ElementInfo describes one editable element of a page, as reported by the
// inspect command. Index is the element's position among all editable
// elements in document order, which is what positional identifiers refer to.
type ElementInfo struct {
	Index       int    `json:"index"`
	TagName     string `json:"tagName"`
	Type        string `json:"type,omitempty"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	ClassName   string `json:"className,omitempty"`
	Value       string `json:"value,omitempty"`
	Visible     bool   `json:"visible"`
	Enabled     bool   `json:"enabled"`
}

// RowDiagnostic describes a candidate grid row and which component accessors
// it exposes in the page realm.
type RowDiagnostic struct {
	Selector  string          `json:"selector"`
	Index     int             `json:"index"`
	ClassName string          `json:"className"`
	Accessors map[string]bool `json:"accessors"`
}
