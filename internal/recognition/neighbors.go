package recognition

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat"
)

// Metric is a distance between two feature rows.
type Metric int

const (
	Euclidean Metric = iota
	Manhattan
)

// Distance returns the metric distance between a and b.
func (m Metric) Distance(a, b []float64) float64 {
	var sum float64
	switch m {
	case Manhattan:
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum
	default:
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum)
	}
}

func checkTraining(x [][]float64, y []int) (int, error) {
	if len(x) == 0 {
		return 0, errors.Wrap(ErrClassifierFault, "empty training set")
	}
	if len(x) != len(y) {
		return 0, errors.Wrapf(ErrClassifierFault, "%d rows but %d labels", len(x), len(y))
	}
	k := len(x[0])
	for i, row := range x {
		if len(row) != k {
			return 0, errors.Wrapf(ErrClassifierFault, "row %d has %d features, want %d", i, len(row), k)
		}
	}
	return k, nil
}

func checkRows(x [][]float64, k int) error {
	for i, row := range x {
		if len(row) != k {
			return errors.Wrapf(ErrClassifierFault, "row %d has %d features, model has %d", i, len(row), k)
		}
	}
	return nil
}

// KNN is a 1-nearest-neighbour classifier. Equidistant neighbours resolve
// to the earliest training row.
type KNN struct {
	Metric Metric

	x [][]float64
	y []int
	k int
}

// Fit memorises the training rows.
func (c *KNN) Fit(x [][]float64, y []int) error {
	k, err := checkTraining(x, y)
	if err != nil {
		return err
	}
	c.x, c.y, c.k = x, y, k
	return nil
}

// Predict labels every row with its nearest training row's label.
func (c *KNN) Predict(x [][]float64) ([]int, error) {
	if c.x == nil {
		return nil, errors.Wrap(ErrClassifierFault, "predict before fit")
	}
	if err := checkRows(x, c.k); err != nil {
		return nil, err
	}
	out := make([]int, len(x))
	for i, q := range x {
		best, bestD := 0, math.Inf(1)
		for j, p := range c.x {
			if d := c.Metric.Distance(q, p); d < bestD {
				best, bestD = j, d
			}
		}
		out[i] = c.y[best]
	}
	return out, nil
}

// NearestCentroid labels a row with the class whose centroid is closest.
// Euclidean centroids are class means; Manhattan centroids are per-feature
// class medians, which minimise the L1 distance.
type NearestCentroid struct {
	Metric Metric

	labels    []int
	centroids [][]float64
	k         int
}

// Fit computes one centroid per class, classes in ascending label order.
func (c *NearestCentroid) Fit(x [][]float64, y []int) error {
	k, err := checkTraining(x, y)
	if err != nil {
		return err
	}
	groups := groupByLabel(x, y)
	c.labels = sortedLabels(groups)
	c.centroids = make([][]float64, len(c.labels))
	for i, l := range c.labels {
		rows := groups[l]
		centroid := make([]float64, k)
		col := make([]float64, len(rows))
		for j := 0; j < k; j++ {
			for r, row := range rows {
				col[r] = row[j]
			}
			if c.Metric == Manhattan {
				centroid[j] = median(col)
			} else {
				centroid[j] = stat.Mean(col, nil)
			}
		}
		c.centroids[i] = centroid
	}
	c.k = k
	return nil
}

// Predict labels each row with its nearest centroid; ties go to the lower label.
func (c *NearestCentroid) Predict(x [][]float64) ([]int, error) {
	if c.centroids == nil {
		return nil, errors.Wrap(ErrClassifierFault, "predict before fit")
	}
	if err := checkRows(x, c.k); err != nil {
		return nil, err
	}
	out := make([]int, len(x))
	for i, q := range x {
		best, bestD := 0, math.Inf(1)
		for j, cen := range c.centroids {
			if d := c.Metric.Distance(q, cen); d < bestD {
				best, bestD = j, d
			}
		}
		out[i] = c.labels[best]
	}
	return out, nil
}

func groupByLabel(x [][]float64, y []int) map[int][][]float64 {
	g := make(map[int][][]float64)
	for i, l := range y {
		g[l] = append(g[l], x[i])
	}
	return g
}

func sortedLabels[T any](g map[int]T) []int {
	labels := make([]int, 0, len(g))
	for l := range g {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
