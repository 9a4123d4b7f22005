package domain

// FieldCount represents the number of findings sharing one value of a field
type FieldCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// RunSummary represents findings of a run grouped by a single field
type RunSummary struct {
	RunID  string       `json:"run_id"`
	Field  string       `json:"field"`
	Total  int64        `json:"total"`
	Groups []FieldCount `json:"groups"`
}
