package features

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/keizerzilla/latin/internal/security"
)

// DefaultScenarios are the crop-radius variants of the Bosphorus dataset.
var DefaultScenarios = []string{
	"bosphorus-c40", "bosphorus-c45", "bosphorus-c50", "bosphorus-c55",
	"bosphorus-c60", "bosphorus-c65", "bosphorus-c70", "bosphorus-c75",
	"bosphorus-c80", "bosphorus-c85", "bosphorus-c90",
}

// DefaultMoments are the moment families computed for every scenario.
var DefaultMoments = []string{"zernike", "legendre", "chebyshev", "hututu", "hu1980"}

// ScenarioPlan describes a scenario sweep: for every scenario folder under
// Datasets, the Subset folder is extracted once per moment family into
// Results/<scenario>/<subset>-<moment>.dat.
type ScenarioPlan struct {
	Datasets  string
	Subset    string
	Scenarios []string
	Moments   []string
	Results   string
}

// ComputerFactory builds the moment computer for one moment family.
type ComputerFactory func(moment string) (MomentComputer, error)

// ScenarioResult is the outcome of one (scenario, moment) extraction.
type ScenarioResult struct {
	Scenario string
	Moment   string
	Output   string
	Stats    Stats
	Err      error
}

// OutputPath returns where the dataset of one (scenario, moment) pair goes.
func (p ScenarioPlan) OutputPath(scenario, moment string) (string, error) {
	name := fmt.Sprintf("%s-%s.dat", security.SanitizeFilename(p.Subset), security.SanitizeFilename(moment))
	return security.JoinWithin(p.Results, scenario, name)
}

// RunScenarios extracts every (scenario, moment) pair of plan with e,
// swapping in the computer built by newComputer for each moment. A failing
// pair is recorded and the sweep moves on; only a results folder that cannot
// be created stops it.
func RunScenarios(ctx context.Context, e *Extractor, plan ScenarioPlan, newComputer ComputerFactory) ([]ScenarioResult, error) {
	var out []ScenarioResult
	for _, scenario := range plan.Scenarios {
		dir, err := security.JoinWithin(plan.Results, scenario)
		if err != nil {
			return out, err
		}
		if err := e.FS.MkdirAll(dir, 0o755); err != nil {
			return out, errors.Wrapf(err, "create %s", dir)
		}
		data := filepath.Join(plan.Datasets, scenario, plan.Subset)

		for _, moment := range plan.Moments {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			res := ScenarioResult{Scenario: scenario, Moment: moment}
			res.Output, res.Err = plan.OutputPath(scenario, moment)
			if res.Err == nil {
				res.Stats, res.Err = runOne(ctx, e, newComputer, moment, data, res.Output)
			}
			out = append(out, res)
		}
	}
	return out, nil
}

func runOne(ctx context.Context, e *Extractor, newComputer ComputerFactory, moment, data, output string) (Stats, error) {
	c, err := newComputer(moment)
	if err != nil {
		return Stats{}, err
	}
	ex := *e
	ex.Computer = c
	d, stats, err := ex.Extract(ctx, data, "")
	if err != nil {
		return stats, err
	}
	if d.Len() == 0 {
		return stats, errors.Newf("no clouds extracted from %s", data)
	}
	return stats, d.Save(e.FS, output)
}
