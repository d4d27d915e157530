package entities

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidItinerary is wrapped by every structural check failure.
var ErrInvalidItinerary = errors.New("invalid itinerary")

// Itinerary is a typed read view of the itinerary document. The stored
// document is kept as raw JSON so unknown fields survive round trips;
// this struct is only decoded for lookups and assertions.
type Itinerary struct {
	Destination   string                     `json:"destination,omitempty"`
	Schedule      []Day                      `json:"schedule,omitempty"`
	TotalBudget   *Budget                    `json:"totalBudget,omitempty"`
	BookingInfo   map[string]json.RawMessage `json:"bookingInfo,omitempty"`
	LocalInsights []json.RawMessage          `json:"localInsights,omitempty"`
	Logistics     json.RawMessage            `json:"logistics,omitempty"`
	// Confidence is advisory, in [0, 1].
	Confidence *float64 `json:"confidence,omitempty"`
}

// Budget is the trip-level cost summary.
type Budget struct {
	Amount    float64            `json:"amount"`
	Currency  string             `json:"currency,omitempty"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// Day is one entry of the itinerary schedule.
type Day struct {
	Day        int        `json:"day"`
	Date       string     `json:"date,omitempty"`
	Title      string     `json:"title,omitempty"`
	Activities []Activity `json:"activities"`
}

// Activity is one scheduled item of a day. Type is an open set.
type Activity struct {
	Time            string          `json:"time,omitempty"`
	Activity        string          `json:"activity,omitempty"`
	Type            string          `json:"type,omitempty"`
	Cost            interface{}     `json:"cost,omitempty"`
	Location        string          `json:"location,omitempty"`
	BookingRequired bool            `json:"bookingRequired,omitempty"`
	Tips            json.RawMessage `json:"tips,omitempty"`
}

// DestinationOf returns the destination named by a raw itinerary, or "" when absent.
func DestinationOf(itinerary json.RawMessage) string {
	var view struct {
		Destination interface{} `json:"destination"`
	}
	if err := json.Unmarshal(itinerary, &view); err != nil {
		return ""
	}
	switch d := view.Destination.(type) {
	case string:
		return d
	case map[string]interface{}:
		// Some upstream documents carry {"name": "...", "country": "..."}.
		if name, ok := d["name"].(string); ok {
			return name
		}
	}
	return ""
}

// HasSchedule reports whether the raw itinerary carries a schedule key.
func HasSchedule(itinerary json.RawMessage) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(itinerary, &doc); err != nil {
		return false
	}
	_, ok := doc["schedule"]
	return ok
}

// ValidateItineraryShape checks the structural invariants of an itinerary
// document: it is an object; schedule, when present, is an array of day
// objects with unique positive ordinals; every activities field is an array.
// requireSchedule rejects a document whose schedule has gone missing.
func ValidateItineraryShape(itinerary []byte, requireSchedule bool) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(itinerary, &doc); err != nil || doc == nil {
		return fmt.Errorf("%w: document must be a JSON object", ErrInvalidItinerary)
	}

	rawSchedule, ok := doc["schedule"]
	if !ok {
		if requireSchedule {
			return fmt.Errorf("%w: schedule was removed", ErrInvalidItinerary)
		}
		return nil
	}

	var days []json.RawMessage
	if err := json.Unmarshal(rawSchedule, &days); err != nil || days == nil {
		return fmt.Errorf("%w: schedule must be an array", ErrInvalidItinerary)
	}

	seen := make(map[int]struct{}, len(days))
	for i, rawDay := range days {
		var day map[string]json.RawMessage
		if err := json.Unmarshal(rawDay, &day); err != nil || day == nil {
			return fmt.Errorf("%w: schedule[%d] must be an object", ErrInvalidItinerary, i)
		}

		var ordinal float64
		rawOrdinal, ok := day["day"]
		if !ok {
			return fmt.Errorf("%w: schedule[%d] has no day ordinal", ErrInvalidItinerary, i)
		}
		if err := json.Unmarshal(rawOrdinal, &ordinal); err != nil || ordinal < 1 || ordinal != float64(int(ordinal)) {
			return fmt.Errorf("%w: schedule[%d].day must be a positive integer", ErrInvalidItinerary, i)
		}
		if _, dup := seen[int(ordinal)]; dup {
			return fmt.Errorf("%w: duplicate day ordinal %d", ErrInvalidItinerary, int(ordinal))
		}
		seen[int(ordinal)] = struct{}{}

		if rawActivities, ok := day["activities"]; ok {
			var activities []json.RawMessage
			if err := json.Unmarshal(rawActivities, &activities); err != nil || activities == nil {
				return fmt.Errorf("%w: schedule[%d].activities must be an array", ErrInvalidItinerary, i)
			}
		}
	}
	return nil
}
