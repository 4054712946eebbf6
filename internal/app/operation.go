package app

import "encoding/json"

// Operation tracks a CLI command that may change something.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation string) *Operation {
	return &Operation{
		Operation: operation,
		Status:    "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// SetParameters stores params as JSON. Values that cannot be encoded are
// recorded as an empty string.
func (op *Operation) SetParameters(params any) {
	if params == nil {
		return
	}
	data, err := json.Marshal(params)
	if err != nil {
		op.Parameters = ""
		return
	}
	op.Parameters = string(data)
}

// Record marks the operation failed when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
