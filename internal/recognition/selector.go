package recognition

import (
	"fmt"
	"math"
	"sort"
)

// SelectBest returns the classifier with the highest recognition rate and
// that rate as a percentage rounded to two decimals. Equal rates resolve to
// the lexicographically smallest name. An empty mapping yields ("", 0).
func SelectBest(results map[string]ClassificationResult) (string, float64) {
	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Strings(names)

	best, bestRate := "", math.Inf(-1)
	for _, n := range names {
		if r := results[n].RecognitionRate; r > bestRate {
			best, bestRate = n, r
		}
	}
	if best == "" {
		return "", 0
	}
	return best, math.Round(bestRate*100*100) / 100
}

// FormatSummary renders one report line: protocol, classifier and rate in
// fixed-width columns.
func FormatSummary(protocol, classifier string, ratePercent float64) string {
	return fmt.Sprintf("%-15s%-15s%-7.2f", protocol, classifier, ratePercent)
}
