package model

// OperationError records a rejected or unparsable script line.
type OperationError struct {
	Line   uint64 `json:"line"`
	Op     string `json:"op"`
	Caller string `json:"caller"`
	Fatal  bool   `json:"fatal"`
	Error  string `json:"error"`
}
