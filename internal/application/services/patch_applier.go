package services

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

// PatchOutcome describes what applying a patch did.
type PatchOutcome string

const (
	PatchApplied PatchOutcome = "applied"
	PatchNoop    PatchOutcome = "noop"
)

// PatchResult is a successful (possibly no-op) application.
type PatchResult struct {
	Outcome      PatchOutcome
	Itinerary    json.RawMessage
	ChangedPaths []string
}

// PatchApplier applies JSON Patch operations to an itinerary all-or-nothing.
type PatchApplier struct {
	opts *jsonpatch.ApplyOptions
}

// NewPatchApplier creates a new applier
func NewPatchApplier() *PatchApplier {
	opts := jsonpatch.NewApplyOptions()
	opts.SupportNegativeIndices = false
	return &PatchApplier{opts: opts}
}

// Apply validates ops and applies them to a copy of itinerary. Any failure
// returns a PATCH_REJECTED AppError and leaves the input untouched. An empty
// patch, or one that yields an identical document, is a no-op.
func (a *PatchApplier) Apply(itinerary json.RawMessage, ops []json.RawMessage) (*PatchResult, error) {
	if len(ops) == 0 {
		return &PatchResult{Outcome: PatchNoop, Itinerary: itinerary}, nil
	}

	decoded := make([]entities.PatchOperation, 0, len(ops))
	for i, raw := range ops {
		op, err := decodeOperation(raw)
		if err != nil {
			return nil, apperrors.NewPatchRejectedError(fmt.Sprintf("operation %d is invalid", i), err)
		}
		decoded = append(decoded, op)
	}

	encoded, err := json.Marshal(decoded)
	if err != nil {
		return nil, apperrors.NewPatchRejectedError("failed to encode patch", err)
	}
	patch, err := jsonpatch.DecodePatch(encoded)
	if err != nil {
		return nil, apperrors.NewPatchRejectedError("failed to decode patch", err)
	}

	candidate, err := patch.ApplyWithOptions(append([]byte(nil), itinerary...), a.opts)
	if err != nil {
		return nil, apperrors.NewPatchRejectedError("patch does not apply to the itinerary", err)
	}

	if err := entities.ValidateItineraryShape(candidate, entities.HasSchedule(itinerary)); err != nil {
		return nil, apperrors.NewPatchRejectedError("patched itinerary is malformed", err)
	}

	if jsonpatch.Equal(itinerary, candidate) {
		return &PatchResult{Outcome: PatchNoop, Itinerary: itinerary}, nil
	}

	return &PatchResult{
		Outcome:      PatchApplied,
		Itinerary:    candidate,
		ChangedPaths: changedPaths(decoded),
	}, nil
}

func decodeOperation(raw json.RawMessage) (entities.PatchOperation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return entities.PatchOperation{}, fmt.Errorf("operation must be an object")
	}

	var op entities.PatchOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		return entities.PatchOperation{}, fmt.Errorf("malformed operation: %w", err)
	}
	if !op.Op.Valid() {
		return entities.PatchOperation{}, fmt.Errorf("unsupported op %q", op.Op)
	}
	if err := validatePointer(op.Path); err != nil {
		return entities.PatchOperation{}, fmt.Errorf("path: %w", err)
	}
	if op.Op.NeedsFrom() {
		if _, ok := fields["from"]; !ok {
			return entities.PatchOperation{}, fmt.Errorf("%s requires from", op.Op)
		}
		if err := validatePointer(op.From); err != nil {
			return entities.PatchOperation{}, fmt.Errorf("from: %w", err)
		}
	}
	if op.Op.NeedsValue() {
		if _, ok := fields["value"]; !ok {
			return entities.PatchOperation{}, fmt.Errorf("%s requires value", op.Op)
		}
	}
	return op, nil
}

// validatePointer accepts JSON pointers inside the itinerary. The empty
// pointer would replace the whole document and is refused.
func validatePointer(p string) error {
	if p == "" {
		return fmt.Errorf("whole-document operations are not allowed")
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%q is not a JSON pointer", p)
	}
	return nil
}

func changedPaths(ops []entities.PatchOperation) []string {
	paths := make([]string, 0, len(ops))
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if op.Op == entities.PatchOpTest {
			continue
		}
		if _, ok := seen[op.Path]; ok {
			continue
		}
		seen[op.Path] = struct{}{}
		paths = append(paths, op.Path)
	}
	return paths
}
