// Package cloud owns facial point clouds, their co-located landmark sets and
// the rigid transforms applied to them.
//
// Every operation returns a new, owned cloud. Landmarks are only ever
// transformed together with their cloud through Scan.Transform.
package cloud

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r3"
)

// NoseTipIndex is the landmark index of the nose tip.
const NoseTipIndex = 13

// ErrMissingLandmark is returned when a landmark index is out of range.
var ErrMissingLandmark = errors.New("landmark not present")

// PointCloud is an ordered sequence of 3-D points.
type PointCloud struct {
	Points []r3.Vector
}

// NewPointCloud copies pts into a new cloud.
func NewPointCloud(pts []r3.Vector) PointCloud {
	return PointCloud{Points: append([]r3.Vector(nil), pts...)}
}

// Len returns the number of points.
func (c PointCloud) Len() int { return len(c.Points) }

// Clone returns a deep copy.
func (c PointCloud) Clone() PointCloud {
	return NewPointCloud(c.Points)
}

// Centroid returns the mean point, or the zero vector for an empty cloud.
func (c PointCloud) Centroid() r3.Vector {
	if len(c.Points) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range c.Points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(c.Points)))
}

// LandmarkSet is a small, fixed-semantics sequence of anatomical points.
type LandmarkSet struct {
	Points []r3.Vector
}

// At returns landmark i.
func (l LandmarkSet) At(i int) (r3.Vector, error) {
	if i < 0 || i >= len(l.Points) {
		return r3.Vector{}, errors.Wrapf(ErrMissingLandmark, "index %d of %d", i, len(l.Points))
	}
	return l.Points[i], nil
}

// NoseTip returns landmark NoseTipIndex.
func (l LandmarkSet) NoseTip() (r3.Vector, error) {
	return l.At(NoseTipIndex)
}

// Clone returns a deep copy.
func (l LandmarkSet) Clone() LandmarkSet {
	return LandmarkSet{Points: append([]r3.Vector(nil), l.Points...)}
}

// Scan is a cloud together with its landmarks.
type Scan struct {
	Cloud     PointCloud
	Landmarks LandmarkSet
}

// Transform applies t to both the cloud and the landmarks and returns the
// moved copy. Invalid transforms are rejected and nothing is applied.
func (s Scan) Transform(t Transform) (Scan, error) {
	if !IsValidTransformMatrix(t) {
		return Scan{}, errors.Wrapf(ErrInvalidTransform, "%v", [16]float64(t))
	}
	return Scan{
		Cloud:     PointCloud{Points: t.applyAll(s.Cloud.Points)},
		Landmarks: LandmarkSet{Points: t.applyAll(s.Landmarks.Points)},
	}, nil
}
