package registration

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/keizerzilla/latin/internal/cloud"
	"github.com/keizerzilla/latin/internal/monitoring"
)

// minCorrespondences is the smallest inlier set that fixes a rigid transform.
const minCorrespondences = 3

// ICPConfig holds the point-to-point ICP parameters. Distances share the
// units of the input clouds.
type ICPConfig struct {
	MaxCorrespondenceDistance float64 // correspondences farther than this are rejected
	MaxIterations             int
	RelativeFitness           float64 // stop when |Δfitness| falls below this
	RelativeRMSE              float64 // stop when |Δrmse| falls below this
}

// DefaultICPConfig returns the parameters the Bosphorus experiments used.
func DefaultICPConfig() ICPConfig {
	return ICPConfig{
		MaxCorrespondenceDistance: 100,
		MaxIterations:             100,
		RelativeFitness:           1e-4,
		RelativeRMSE:              1e-4,
	}
}

// ICPResult describes one ICP run.
type ICPResult struct {
	Transform  cloud.Transform // maps source onto target
	Fitness    float64         // inlier correspondences / source points
	InlierRMSE float64         // RMSE over inlier correspondences
	Iterations int
	Converged  bool // stopped on the relative criteria rather than MaxIterations
}

// kdPoints converts r3 vectors into a kd-tree point set.
func kdPoints(pts []r3.Vector) kdtree.Points {
	out := make(kdtree.Points, len(pts))
	for i, p := range pts {
		out[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	return out
}

type correspondences struct {
	src, tgt []r3.Vector
	sqErr    float64
}

// match pairs every source point with its nearest target neighbour and keeps
// pairs within maxDist.
func match(tree *kdtree.Tree, src []r3.Vector, maxDist float64) correspondences {
	var c correspondences
	maxSq := maxDist * maxDist
	for _, p := range src {
		nn, d := tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
		if nn == nil || d > maxSq {
			continue
		}
		q := nn.(kdtree.Point)
		c.src = append(c.src, p)
		c.tgt = append(c.tgt, r3.Vector{X: q[0], Y: q[1], Z: q[2]})
		c.sqErr += d
	}
	return c
}

func (c correspondences) stats(nSource int) (fitness, rmse float64) {
	n := len(c.src)
	if n == 0 || nSource == 0 {
		return 0, 0
	}
	return float64(n) / float64(nSource), math.Sqrt(c.sqErr / float64(n))
}

// estimateRigid solves the least-squares rotation and translation mapping
// src onto tgt (Kabsch).
func estimateRigid(src, tgt []r3.Vector) (cloud.Transform, error) {
	if len(src) < minCorrespondences {
		return cloud.Transform{}, errors.Wrapf(ErrDegenerateRegion, "%d correspondences", len(src))
	}
	cs := cloud.PointCloud{Points: src}.Centroid()
	ct := cloud.PointCloud{Points: tgt}.Centroid()

	h := mat.NewDense(3, 3, nil)
	for i := range src {
		a := src[i].Sub(cs)
		b := tgt[i].Sub(ct)
		av := [3]float64{a.X, a.Y, a.Z}
		bv := [3]float64{b.X, b.Y, b.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+av[r]*bv[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return cloud.Transform{}, errors.Wrap(ErrDegenerateRegion, "svd did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V * diag(1, 1, d) * U^T with d correcting a reflection.
	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	var rot [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot[i*3+j] = r.At(i, j)
		}
	}
	rc := r3.Vector{
		X: rot[0]*cs.X + rot[1]*cs.Y + rot[2]*cs.Z,
		Y: rot[3]*cs.X + rot[4]*cs.Y + rot[5]*cs.Z,
		Z: rot[6]*cs.X + rot[7]*cs.Y + rot[8]*cs.Z,
	}
	return cloud.NewTransform(rot, ct.Sub(rc)), nil
}

// ICP estimates the rigid transform that maps source onto target, starting
// from the identity. Iteration stops at MaxIterations or as soon as either
// fitness or inlier RMSE changes by less than its relative threshold.
//
// Too few inliers or a non-rigid estimate yields ErrDegenerateRegion.
func ICP(source, target cloud.PointCloud, cfg ICPConfig) (ICPResult, error) {
	if source.Len() == 0 {
		return ICPResult{}, errors.Wrap(ErrDegenerateRegion, "empty source cloud")
	}
	if target.Len() == 0 {
		return ICPResult{}, errors.Wrap(ErrDegenerateRegion, "empty target cloud")
	}

	// kdtree.New reorders its input, so it gets a private copy.
	tree := kdtree.New(kdPoints(target.Points), false)

	res := ICPResult{Transform: cloud.IdentityTransform}
	moved := source.Clone().Points
	corr := match(tree, moved, cfg.MaxCorrespondenceDistance)
	res.Fitness, res.InlierRMSE = corr.stats(len(moved))

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		step, err := estimateRigid(corr.src, corr.tgt)
		if err != nil {
			return res, err
		}
		next := step.Mul(res.Transform)
		if !cloud.IsValidTransformMatrix(next) {
			return res, errors.Wrap(ErrDegenerateRegion, "icp produced a non-rigid transform")
		}
		res.Transform = next
		res.Iterations = iter + 1

		for i, p := range source.Points {
			moved[i] = next.Apply(p)
		}
		prevFitness, prevRMSE := res.Fitness, res.InlierRMSE
		corr = match(tree, moved, cfg.MaxCorrespondenceDistance)
		res.Fitness, res.InlierRMSE = corr.stats(len(moved))

		monitoring.Tracef("icp iter=%d fitness=%.6f rmse=%.6f inliers=%d", res.Iterations, res.Fitness, res.InlierRMSE, len(corr.src))

		if math.Abs(prevFitness-res.Fitness) < cfg.RelativeFitness ||
			math.Abs(prevRMSE-res.InlierRMSE) < cfg.RelativeRMSE {
			res.Converged = true
			break
		}
	}

	if len(corr.src) < minCorrespondences {
		return res, errors.Wrapf(ErrDegenerateRegion, "%d inliers after %d iterations", len(corr.src), res.Iterations)
	}
	return res, nil
}
