package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// PlanSchemaVersion is the version of the stored plan envelope.
	PlanSchemaVersion = 1

	// VersionAbsent is the expected version for a write that must create the key.
	VersionAbsent int64 = -1
)

// PlanRecord is the full persisted travel plan. Only the itinerary is
// ever mutated by the engine; the other sections are carried as-is.
type PlanRecord struct {
	Itinerary       json.RawMessage
	Recommendations json.RawMessage
	WorkflowData    json.RawMessage
	Orchestration   json.RawMessage
	// Extra keeps any top-level keys written by other producers.
	Extra map[string]json.RawMessage
}

var planRecordKeys = map[string]struct{}{
	"itinerary":       {},
	"recommendations": {},
	"workflow_data":   {},
	"orchestration":   {},
}

// MarshalJSON writes the known sections followed by preserved extras.
func (p PlanRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["itinerary"] = rawOrNull(p.Itinerary)
	if len(p.Recommendations) > 0 {
		out["recommendations"] = p.Recommendations
	} else {
		out["recommendations"] = json.RawMessage("[]")
	}
	if len(p.WorkflowData) > 0 {
		out["workflow_data"] = p.WorkflowData
	}
	if len(p.Orchestration) > 0 {
		out["orchestration"] = p.Orchestration
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the known sections and keeps everything else in Extra.
func (p *PlanRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("plan record must be a JSON object")
	}
	*p = PlanRecord{
		Itinerary:       fields["itinerary"],
		Recommendations: fields["recommendations"],
		WorkflowData:    fields["workflow_data"],
		Orchestration:   fields["orchestration"],
	}
	for k, v := range fields {
		if _, known := planRecordKeys[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}
	return nil
}

// WithItinerary returns a copy of the record carrying a new itinerary.
func (p PlanRecord) WithItinerary(itinerary json.RawMessage) PlanRecord {
	next := p
	next.Itinerary = append(json.RawMessage(nil), itinerary...)
	return next
}

// StoredPlan is the envelope written under a plan key.
type StoredPlan struct {
	SchemaVersion int        `json:"schema_version"`
	Version       int64      `json:"version"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Plan          PlanRecord `json:"plan"`
	// Legacy is set when the bytes were a bare plan record written before envelopes existed.
	Legacy bool `json:"-"`
}

// NewStoredPlan wraps a record as version 1.
func NewStoredPlan(plan PlanRecord, now time.Time) *StoredPlan {
	return &StoredPlan{
		SchemaVersion: PlanSchemaVersion,
		Version:       1,
		UpdatedAt:     now.UTC(),
		Plan:          plan,
	}
}

// Next returns the successor envelope carrying the given itinerary.
func (s *StoredPlan) Next(itinerary json.RawMessage, now time.Time) *StoredPlan {
	return &StoredPlan{
		SchemaVersion: PlanSchemaVersion,
		Version:       s.Version + 1,
		UpdatedAt:     now.UTC(),
		Plan:          s.Plan.WithItinerary(itinerary),
	}
}

// DecodeStoredPlan reads either an envelope or a bare legacy plan record.
// Legacy records decode with version 0.
func DecodeStoredPlan(data []byte) (*StoredPlan, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode stored plan: %w", err)
	}
	if probe == nil {
		return nil, fmt.Errorf("failed to decode stored plan: not an object")
	}

	if _, enveloped := probe["schema_version"]; enveloped {
		var stored StoredPlan
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("failed to decode stored plan: %w", err)
		}
		return &stored, nil
	}

	record, err := NormalizeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return &StoredPlan{
		SchemaVersion: PlanSchemaVersion,
		Version:       0,
		Plan:          *record,
		Legacy:        true,
	}, nil
}

// NormalizeSnapshot turns a client-supplied or legacy plan into a PlanRecord.
// It accepts either a full record ({"itinerary": {...}}) or a bare itinerary,
// defaults a missing schedule to [] and fills in missing day ordinals and
// activity lists, then runs the structural checks.
func NormalizeSnapshot(data []byte) (*PlanRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty plan snapshot", ErrInvalidItinerary)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: plan snapshot must be a JSON object", ErrInvalidItinerary)
	}

	var record PlanRecord
	if _, wrapped := fields["itinerary"]; wrapped {
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItinerary, err)
		}
	} else {
		record.Itinerary = trimmed
	}

	itinerary, err := normalizeItinerary(record.Itinerary)
	if err != nil {
		return nil, err
	}
	record.Itinerary = itinerary
	return &record, nil
}

func normalizeItinerary(raw json.RawMessage) (json.RawMessage, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: itinerary must be a JSON object", ErrInvalidItinerary)
	}

	schedule, present := doc["schedule"]
	if !present || schedule == nil {
		doc["schedule"] = []interface{}{}
	} else {
		days, ok := schedule.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: schedule must be an array", ErrInvalidItinerary)
		}
		for i, d := range days {
			day, ok := d.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: schedule[%d] must be an object", ErrInvalidItinerary, i)
			}
			if _, ok := day["day"]; !ok {
				day["day"] = i + 1
			}
			if activities, ok := day["activities"]; !ok || activities == nil {
				day["activities"] = []interface{}{}
			}
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode itinerary: %w", err)
	}
	if err := ValidateItineraryShape(out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
