package recognition

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// varSmoothing is added to every class variance, scaled by the largest
// feature variance, so single-sample classes stay well defined.
const varSmoothing = 1e-9

// NaiveBayes is a Gaussian naive Bayes classifier with empirical priors.
type NaiveBayes struct {
	labels   []int
	logPrior []float64
	means    [][]float64
	vars     [][]float64
	k        int
}

// Fit estimates per-class feature means and population variances.
func (c *NaiveBayes) Fit(x [][]float64, y []int) error {
	k, err := checkTraining(x, y)
	if err != nil {
		return err
	}

	col := make([]float64, len(x))
	maxVar := 0.0
	for j := 0; j < k; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		if v := stat.PopVariance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	epsilon := varSmoothing * maxVar
	if epsilon == 0 {
		epsilon = varSmoothing
	}

	groups := groupByLabel(x, y)
	c.labels = sortedLabels(groups)
	n := len(c.labels)
	c.logPrior = make([]float64, n)
	c.means = make([][]float64, n)
	c.vars = make([][]float64, n)
	for ci, l := range c.labels {
		rows := groups[l]
		c.logPrior[ci] = math.Log(float64(len(rows)) / float64(len(x)))
		c.means[ci] = make([]float64, k)
		c.vars[ci] = make([]float64, k)
		vals := make([]float64, len(rows))
		for j := 0; j < k; j++ {
			for r, row := range rows {
				vals[r] = row[j]
			}
			m, v := stat.PopMeanVariance(vals, nil)
			c.means[ci][j] = m
			c.vars[ci][j] = v + epsilon
		}
	}
	c.k = k
	return nil
}

// Predict returns the class with the highest joint log likelihood; ties go
// to the lower label.
func (c *NaiveBayes) Predict(x [][]float64) ([]int, error) {
	if c.labels == nil {
		return nil, errors.Wrap(ErrClassifierFault, "predict before fit")
	}
	if err := checkRows(x, c.k); err != nil {
		return nil, err
	}
	out := make([]int, len(x))
	ll := make([]float64, len(c.labels))
	for i, q := range x {
		for ci := range c.labels {
			s := c.logPrior[ci]
			for j, v := range q {
				d := v - c.means[ci][j]
				s -= 0.5*math.Log(2*math.Pi*c.vars[ci][j]) + d*d/(2*c.vars[ci][j])
			}
			ll[ci] = s
		}
		out[i] = c.labels[floats.MaxIdx(ll)]
	}
	return out, nil
}
