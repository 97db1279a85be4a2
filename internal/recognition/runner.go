package recognition

import (
	"context"

	"github.com/keizerzilla/latin/internal/features"
	"github.com/keizerzilla/latin/internal/monitoring"
)

// Summary is the best result of one protocol.
type Summary struct {
	Protocol    string
	Classifier  string
	RatePercent float64
	TrainRows   int
	TestRows    int
	Results     map[string]ClassificationResult
}

// String renders the summary with FormatSummary.
func (s Summary) String() string {
	return FormatSummary(s.Protocol, s.Classifier, s.RatePercent)
}

// RunAll partitions d under every protocol, runs the harness on each split
// and returns one summary per protocol in the given order.
func RunAll(ctx context.Context, d *features.Dataset, protocols []Protocol, h *Harness) []Summary {
	out := make([]Summary, 0, len(protocols))
	for _, p := range protocols {
		if ctx.Err() != nil {
			break
		}
		split := p.Partition(d)
		results := h.Run(ctx, split)
		name, rate := SelectBest(results)
		s := Summary{
			Protocol:    p.Name,
			Classifier:  name,
			RatePercent: rate,
			TrainRows:   len(split.TrainX),
			TestRows:    len(split.TestX),
			Results:     results,
		}
		monitoring.Opsf("%s", s)
		out = append(out, s)
	}
	return out
}
