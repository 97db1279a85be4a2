package recognition

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	smoTolerance = 1e-3
	smoMinStep   = 1e-5
	smoMaxPasses = 5
	smoMaxIter   = 10000
)

// SVC is a multi-class support vector classifier with an RBF kernel,
// trained one-vs-one with sequential minimal optimisation.
type SVC struct {
	C     float64
	Gamma float64

	x      [][]float64
	labels []int
	pairs  []pairModel
	k      int
}

// pairModel separates labels[a] (positive side) from labels[b].
type pairModel struct {
	a, b    int
	support []int
	coef    []float64
	bias    float64
}

func (c *SVC) kernel(u, v []float64) float64 {
	return math.Exp(-c.Gamma * sqDist(u, v))
}

func sqDist(u, v []float64) float64 {
	var s float64
	for i := range u {
		d := u[i] - v[i]
		s += d * d
	}
	return s
}

// Fit trains one binary machine per label pair.
func (c *SVC) Fit(x [][]float64, y []int) error {
	k, err := checkTraining(x, y)
	if err != nil {
		return err
	}
	if c.C <= 0 || c.Gamma <= 0 {
		return errors.Wrapf(ErrClassifierFault, "svm needs positive C and gamma, got %g and %g", c.C, c.Gamma)
	}

	n := len(x)
	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			gram.SetSym(i, j, c.kernel(x[i], x[j]))
		}
	}

	groups := make(map[int][]int)
	for i, l := range y {
		groups[l] = append(groups[l], i)
	}
	c.labels = sortedLabels(groups)
	c.pairs = c.pairs[:0]
	for a := 0; a < len(c.labels); a++ {
		for b := a + 1; b < len(c.labels); b++ {
			idx := append(append([]int(nil), groups[c.labels[a]]...), groups[c.labels[b]]...)
			sign := make([]float64, len(idx))
			for i := range idx {
				sign[i] = -1
				if i < len(groups[c.labels[a]]) {
					sign[i] = 1
				}
			}
			m := c.smo(gram, idx, sign)
			m.a, m.b = a, b
			c.pairs = append(c.pairs, m)
		}
	}
	c.x, c.k = x, k
	return nil
}

// smo solves the dual problem restricted to rows idx with targets sign.
// The second multiplier is the one maximising |Ei - Ej|, lowest index first,
// so training is deterministic.
func (c *SVC) smo(gram *mat.SymDense, idx []int, sign []float64) pairModel {
	n := len(idx)
	alpha := make([]float64, n)
	errs := make([]float64, n)
	for i := range errs {
		errs[i] = -sign[i]
	}
	var bias float64
	kern := func(i, j int) float64 { return gram.At(idx[i], idx[j]) }

	passes, iter := 0, 0
	for passes < smoMaxPasses && iter < smoMaxIter {
		changed := 0
		for i := 0; i < n; i++ {
			iter++
			ei := errs[i]
			r := ei * sign[i]
			if !((r < -smoTolerance && alpha[i] < c.C) || (r > smoTolerance && alpha[i] > 0)) {
				continue
			}
			j, gap := -1, -1.0
			for q := 0; q < n; q++ {
				if q == i {
					continue
				}
				if g := math.Abs(ei - errs[q]); g > gap {
					j, gap = q, g
				}
			}
			if j < 0 {
				continue
			}
			ej := errs[j]
			ai, aj := alpha[i], alpha[j]
			var lo, hi float64
			if sign[i] != sign[j] {
				lo, hi = math.Max(0, aj-ai), math.Min(c.C, c.C+aj-ai)
			} else {
				lo, hi = math.Max(0, ai+aj-c.C), math.Min(c.C, ai+aj)
			}
			if lo >= hi {
				continue
			}
			eta := 2*kern(i, j) - kern(i, i) - kern(j, j)
			if eta >= 0 {
				continue
			}
			newAj := aj - sign[j]*(ei-ej)/eta
			newAj = math.Max(lo, math.Min(hi, newAj))
			if math.Abs(newAj-aj) < smoMinStep {
				continue
			}
			newAi := ai + sign[i]*sign[j]*(aj-newAj)

			di, dj := newAi-ai, newAj-aj
			b1 := bias - ei - sign[i]*di*kern(i, i) - sign[j]*dj*kern(i, j)
			b2 := bias - ej - sign[i]*di*kern(i, j) - sign[j]*dj*kern(j, j)
			newBias := (b1 + b2) / 2
			switch {
			case newAi > 0 && newAi < c.C:
				newBias = b1
			case newAj > 0 && newAj < c.C:
				newBias = b2
			}

			for q := 0; q < n; q++ {
				errs[q] += sign[i]*di*kern(i, q) + sign[j]*dj*kern(j, q) + newBias - bias
			}
			alpha[i], alpha[j], bias = newAi, newAj, newBias
			changed++
		}
		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	m := pairModel{bias: bias}
	for i, a := range alpha {
		if a > 0 {
			m.support = append(m.support, idx[i])
			m.coef = append(m.coef, a*sign[i])
		}
	}
	return m
}

// Predict labels each row by one-vs-one voting; ties go to the lower label.
func (c *SVC) Predict(x [][]float64) ([]int, error) {
	if c.labels == nil {
		return nil, errors.Wrap(ErrClassifierFault, "predict before fit")
	}
	if err := checkRows(x, c.k); err != nil {
		return nil, err
	}
	out := make([]int, len(x))
	votes := make([]float64, len(c.labels))
	for i, q := range x {
		for v := range votes {
			votes[v] = 0
		}
		for _, m := range c.pairs {
			f := m.bias
			for s, sv := range m.support {
				f += m.coef[s] * c.kernel(c.x[sv], q)
			}
			if f > 0 {
				votes[m.a]++
			} else {
				votes[m.b]++
			}
		}
		out[i] = c.labels[floats.MaxIdx(votes)]
	}
	return out, nil
}
