package evaluation

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestRecall(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		got      []string
		want     float64
	}{
		{"all found", []string{"social", "authentic"}, []string{"authentic", "social"}, 1.0},
		{"half found", []string{"recommendation", "recency"}, []string{"recommendation", "booking"}, 0.5},
		{"none found", []string{"social"}, nil, 0.0},
		{"nothing expected", nil, []string{"social"}, 1.0},
		{"duplicates in got", []string{"social"}, []string{"social", "social"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recall(tt.expected, tt.got); !almostEqual(got, tt.want) {
				t.Errorf("Recall() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(3, 4); !almostEqual(got, 0.75) {
		t.Errorf("expected 0.75, got %f", got)
	}
	if got := Accuracy(0, 0); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0 for empty set, got %f", got)
	}
}
