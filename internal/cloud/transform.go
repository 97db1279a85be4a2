package cloud

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r3"
)

// MatrixValidationTolerance bounds the deviation of R^T*R from identity and
// of det(R) from 1 for a matrix to count as a rigid transform.
const MatrixValidationTolerance = 1e-6

// ErrInvalidTransform is returned when a matrix is not a proper rigid transform.
var ErrInvalidTransform = errors.New("invalid rigid transform")

// Transform is a row-major 4x4 homogeneous matrix:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33].
type Transform [16]float64

// IdentityTransform leaves every point in place.
var IdentityTransform = Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// NewTransform builds a transform from a row-major 3x3 rotation and a translation.
func NewTransform(r [9]float64, t r3.Vector) Transform {
	return Transform{
		r[0], r[1], r[2], t.X,
		r[3], r[4], r[5], t.Y,
		r[6], r[7], r[8], t.Z,
		0, 0, 0, 1,
	}
}

// Apply maps a single point.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

func (t Transform) applyAll(pts []r3.Vector) []r3.Vector {
	if pts == nil {
		return nil
	}
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// Mul returns t*o, the transform that applies o first and then t.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Rotation returns the row-major 3x3 rotation block.
func (t Transform) Rotation() [9]float64 {
	return [9]float64{t[0], t[1], t[2], t[4], t[5], t[6], t[8], t[9], t[10]}
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// IsValidTransformMatrix checks that t is a proper rigid transform:
// finite entries, orthonormal rotation block with det = +1 and last row
// [0 0 0 1].
func IsValidTransformMatrix(t Transform) bool {
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1) > MatrixValidationTolerance {
		return false
	}

	r := t.Rotation()
	// R^T * R must be identity.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := r[i]*r[j] + r[3+i]*r[3+j] + r[6+i]*r[6+j]
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > MatrixValidationTolerance {
				return false
			}
		}
	}

	det := r[0]*(r[4]*r[8]-r[5]*r[7]) - r[1]*(r[3]*r[8]-r[5]*r[6]) + r[2]*(r[3]*r[7]-r[4]*r[6])
	return math.Abs(det-1) <= MatrixValidationTolerance
}

// Transform returns a transformed copy of the cloud.
func (c PointCloud) Transform(t Transform) (PointCloud, error) {
	if !IsValidTransformMatrix(t) {
		return PointCloud{}, errors.Wrapf(ErrInvalidTransform, "%v", [16]float64(t))
	}
	return PointCloud{Points: t.applyAll(c.Points)}, nil
}
