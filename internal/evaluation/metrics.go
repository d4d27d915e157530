package evaluation

// Recall computes the fraction of expected labels present in got.
// An empty expectation is fully recalled.
func Recall(expected, got []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	gotSet := make(map[string]struct{}, len(got))
	for _, g := range got {
		gotSet[g] = struct{}{}
	}

	found := 0
	for _, e := range expected {
		if _, ok := gotSet[e]; ok {
			found++
		}
	}

	return float64(found) / float64(len(expected))
}

// Accuracy returns correct/total, or 0 when total is 0.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(correct) / float64(total)
}
