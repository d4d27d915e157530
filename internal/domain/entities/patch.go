package entities

import "encoding/json"

// PatchOp is an RFC 6902 operation name.
type PatchOp string

const (
	PatchOpAdd     PatchOp = "add"
	PatchOpRemove  PatchOp = "remove"
	PatchOpReplace PatchOp = "replace"
	PatchOpMove    PatchOp = "move"
	PatchOpCopy    PatchOp = "copy"
	PatchOpTest    PatchOp = "test"
)

// Valid reports whether op is one of the six RFC 6902 operations.
func (op PatchOp) Valid() bool {
	switch op {
	case PatchOpAdd, PatchOpRemove, PatchOpReplace, PatchOpMove, PatchOpCopy, PatchOpTest:
		return true
	}
	return false
}

// NeedsValue reports whether the operation carries a value member.
func (op PatchOp) NeedsValue() bool {
	return op == PatchOpAdd || op == PatchOpReplace || op == PatchOpTest
}

// NeedsFrom reports whether the operation carries a from member.
func (op PatchOp) NeedsFrom() bool {
	return op == PatchOpMove || op == PatchOpCopy
}

// PatchOperation is one JSON Patch operation addressed against the itinerary.
type PatchOperation struct {
	Op    PatchOp         `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// InteractionType classifies the model's reply.
type InteractionType string

const (
	InteractionQuestion     InteractionType = "question"
	InteractionModification InteractionType = "modification"
)
