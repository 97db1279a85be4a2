// Package recognition benchmarks classifiers on moment feature tables under
// the Bosphorus rank protocols.
package recognition

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/keizerzilla/latin/internal/features"
	"github.com/keizerzilla/latin/internal/scan"
)

// ErrUnknownProtocol is returned by ProtocolByName for unregistered names.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol is a named train/test partition rule over scan identities.
type Protocol struct {
	Name  string
	Train func(scan.Identity) bool
	Test  func(scan.Identity) bool
}

func neutralReference(id scan.Identity) bool {
	return id.Type == scan.Neutral && id.Sample == 0
}

func nonNeutral(id scan.Identity) bool {
	return id.Type.IsNonNeutral()
}

// The four rank protocols.
var (
	NeutralRank = Protocol{
		Name:  "NeutralRank",
		Train: neutralReference,
		Test:  func(id scan.Identity) bool { return id.Type == scan.Neutral && id.Sample != 0 },
	}
	NonNeutralRank = Protocol{
		Name:  "NonNeutralRank",
		Train: neutralReference,
		Test:  nonNeutral,
	}
	CombinedRank = Protocol{
		Name:  "ROC3",
		Train: func(id scan.Identity) bool { return id.Type == scan.Neutral },
		Test:  nonNeutral,
	}
	OcclusionRank = Protocol{
		Name:  "OcclusionRank",
		Train: neutralReference,
		Test:  func(id scan.Identity) bool { return id.Type == scan.Occlusion },
	}
)

// Protocols returns the built-in protocols in reporting order.
func Protocols() []Protocol {
	return []Protocol{NeutralRank, NonNeutralRank, CombinedRank, OcclusionRank}
}

// ProtocolByName looks a built-in protocol up by name, case-sensitively.
func ProtocolByName(name string) (Protocol, error) {
	for _, p := range Protocols() {
		if p.Name == name {
			return p, nil
		}
	}
	names := make([]string, 0, 4)
	for _, p := range Protocols() {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return Protocol{}, errors.WithHintf(errors.Wrapf(ErrUnknownProtocol, "%q", name), "known protocols: %v", names)
}

// Split holds the feature matrices and subject labels of one partition.
// Identity columns other than the subject are not carried.
type Split struct {
	TrainX [][]float64
	TrainY []int
	TestX  [][]float64
	TestY  []int
}

// Partition selects the train and test rows of d. Moment slices are copied,
// so the split can be modified without touching the dataset.
func (p Protocol) Partition(d *features.Dataset) Split {
	var s Split
	for _, r := range d.Rows() {
		switch {
		case p.Train(r.Identity):
			s.TrainX = append(s.TrainX, append([]float64(nil), r.Moments...))
			s.TrainY = append(s.TrainY, r.Identity.Subject)
		case p.Test(r.Identity):
			s.TestX = append(s.TestX, append([]float64(nil), r.Moments...))
			s.TestY = append(s.TestY, r.Identity.Subject)
		}
	}
	return s
}
