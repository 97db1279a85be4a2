package recognition

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNumericFault marks failures of the normalisation step.
var ErrNumericFault = errors.New("numeric fault")

// Sanitize returns a copy of x with every NaN and ±Inf replaced by zero.
func Sanitize(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		r := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			r[j] = v
		}
		out[i] = r
	}
	return out
}

// StandardScaler centres every column on its training mean and divides by
// its population standard deviation. Columns with zero variance keep a
// scale of one, so they map to zero instead of dividing by zero.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit learns column statistics from x. It fails on an empty or ragged
// matrix and on non-finite statistics.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.Wrap(ErrNumericFault, "scaler fit on empty training set")
	}
	k := len(x[0])
	if k == 0 {
		return errors.Wrap(ErrNumericFault, "scaler fit on zero features")
	}
	m, err := toDense(x, k)
	if err != nil {
		return err
	}

	s.Mean = make([]float64, k)
	s.Scale = make([]float64, k)
	col := make([]float64, len(x))
	for j := 0; j < k; j++ {
		mat.Col(col, j, m)
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(std) || math.IsInf(std, 0) {
			return errors.Wrapf(ErrNumericFault, "column %d has non-finite statistics", j)
		}
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return nil
}

// Transform returns the standardised copy of x.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	k := len(s.Mean)
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != k {
			return nil, errors.Wrapf(ErrNumericFault, "row %d has %d features, scaler has %d", i, len(row), k)
		}
		r := make([]float64, k)
		for j, v := range row {
			r[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = r
	}
	return out, nil
}

// toDense packs x into a row-major matrix, rejecting ragged rows.
func toDense(x [][]float64, k int) (*mat.Dense, error) {
	data := make([]float64, 0, len(x)*k)
	for i, row := range x {
		if len(row) != k {
			return nil, errors.Wrapf(ErrNumericFault, "row %d has %d features, want %d", i, len(row), k)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(x), k, data), nil
}
