package cloud

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keizerzilla/latin/internal/fsutil"
)

func randomCloud(rng *rand.Rand, n int, spread float64) PointCloud {
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{
			X: (rng.Float64()*2 - 1) * spread,
			Y: (rng.Float64()*2 - 1) * spread,
			Z: (rng.Float64()*2 - 1) * spread,
		}
	}
	return PointCloud{Points: pts}
}

// rotationZYX builds a rigid transform from Euler angles and a translation.
func rotationZYX(yaw, pitch, roll float64, t r3.Vector) Transform {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)
	return NewTransform([9]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	}, t)
}

func TestCropSphere_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		c := randomCloud(rng, 500, 100)
		center := c.Points[rng.Intn(len(c.Points))]
		radius := 10 + rng.Float64()*60

		got := CropSphere(c, center, radius)

		inInput := make(map[r3.Vector]int)
		for _, p := range c.Points {
			inInput[p]++
		}
		for _, p := range got.Points {
			require.Positive(t, inInput[p], "cropped point %v not in input", p)
			assert.LessOrEqual(t, p.Sub(center).Norm(), radius)
		}

		want := 0
		for _, p := range c.Points {
			if p.Sub(center).Norm() <= radius {
				want++
			}
		}
		assert.Equal(t, want, got.Len(), "no in-range point may be excluded")
	}
}

func TestCropSphere_EmptyResult(t *testing.T) {
	c := PointCloud{Points: []r3.Vector{{X: 100}, {Y: 100}}}
	got := CropSphere(c, r3.Vector{}, DefaultCropRadius)
	assert.Equal(t, 0, got.Len())
}

func TestCropSphere_DoesNotAlias(t *testing.T) {
	c := PointCloud{Points: []r3.Vector{{X: 1}, {X: 2}}}
	got := CropSphere(c, r3.Vector{}, 10)
	got.Points[0] = r3.Vector{X: 99}
	assert.Equal(t, 1.0, c.Points[0].X)
}

func TestIsValidTransformMatrix(t *testing.T) {
	valid := rotationZYX(0.3, -0.2, 1.1, r3.Vector{X: 5, Y: -2, Z: 10})

	scaled := valid
	scaled[0] *= 1.5

	reflection := IdentityTransform
	reflection[0] = -1

	badLastRow := valid
	badLastRow[12] = 0.1

	withNaN := valid
	withNaN[3] = math.NaN()

	withInf := valid
	withInf[5] = math.Inf(1)

	tests := []struct {
		name string
		t    Transform
		want bool
	}{
		{"identity", IdentityTransform, true},
		{"rotation+translation", valid, true},
		{"scaled", scaled, false},
		{"reflection", reflection, false},
		{"bad last row", badLastRow, false},
		{"nan", withNaN, false},
		{"inf", withInf, false},
		{"zero", Transform{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTransformMatrix(tt.t))
		})
	}
}

func TestScanTransform_RejectsCorruptMatrix(t *testing.T) {
	s := Scan{
		Cloud:     PointCloud{Points: []r3.Vector{{X: 1}}},
		Landmarks: LandmarkSet{Points: []r3.Vector{{Y: 1}}},
	}
	bad := IdentityTransform
	bad[0] = 2

	_, err := s.Transform(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransform))
	assert.Equal(t, 1.0, s.Cloud.Points[0].X, "input must be untouched")
}

// Transforming cloud and landmarks together must equal transforming their
// union: landmarks move exactly like cloud points.
func TestScanTransform_CommutesWithUnion(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	c := randomCloud(rng, 200, 80)
	lm := LandmarkSet{Points: randomCloud(rng, 22, 80).Points}
	tr := rotationZYX(0.4, 0.1, -0.7, r3.Vector{X: 12, Y: 3, Z: -8})

	moved, err := Scan{Cloud: c, Landmarks: lm}.Transform(tr)
	require.NoError(t, err)

	union := PointCloud{Points: append(append([]r3.Vector(nil), c.Points...), lm.Points...)}
	movedUnion, err := union.Transform(tr)
	require.NoError(t, err)

	require.Equal(t, c.Len(), moved.Cloud.Len())
	require.Len(t, moved.Landmarks.Points, len(lm.Points))
	for i, p := range moved.Cloud.Points {
		assert.Equal(t, movedUnion.Points[i], p)
	}
	for i, p := range moved.Landmarks.Points {
		assert.Equal(t, movedUnion.Points[c.Len()+i], p)
	}
}

func TestTransformMul(t *testing.T) {
	a := rotationZYX(0.2, 0, 0, r3.Vector{X: 1})
	b := rotationZYX(0, 0.5, 0, r3.Vector{Z: 2})
	p := r3.Vector{X: 3, Y: -1, Z: 4}

	got := a.Mul(b).Apply(p)
	want := a.Apply(b.Apply(p))
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
	assert.InDelta(t, want.Z, got.Z, 1e-12)
	assert.True(t, IsValidTransformMatrix(a.Mul(b)))
}

func TestLandmarkSet_NoseTip(t *testing.T) {
	pts := make([]r3.Vector, 22)
	pts[NoseTipIndex] = r3.Vector{X: 1, Y: 2, Z: 3}
	nose, err := LandmarkSet{Points: pts}.NoseTip()
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, nose)

	_, err = LandmarkSet{Points: pts[:5]}.NoseTip()
	assert.True(t, errors.Is(err, ErrMissingLandmark))
}

func TestCentroid(t *testing.T) {
	c := PointCloud{Points: []r3.Vector{{X: 1, Y: 1}, {X: 3, Y: -1, Z: 6}}}
	assert.Equal(t, r3.Vector{X: 2, Y: 0, Z: 3}, c.Centroid())
	assert.Equal(t, r3.Vector{}, PointCloud{}.Centroid())
}

func TestReadWrite_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	pts := []r3.Vector{{X: 1.5, Y: -2.25, Z: 3}, {X: 0.1, Y: 0.2, Z: 0.3}, {X: -1e-3, Y: 4e5, Z: 7}}

	for _, path := range []string{"/out/bs000_N_N_0.pcd", "/out/bs000_N_N_0.xyz"} {
		t.Run(path, func(t *testing.T) {
			require.NoError(t, WritePoints(fsys, path, pts))
			got, err := ReadPoints(fsys, path)
			require.NoError(t, err)
			assert.Equal(t, pts, got)
		})
	}
}

func TestDecodePCD(t *testing.T) {
	input := `# .PCD v0.7 - Point Cloud Data file format
VERSION 0.7
FIELDS x y z rgb
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH 2
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 2
DATA ascii
1 2 3 4.2e6
-1 -2 -3 0
`
	pts, err := DecodePCD(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: -2, Z: -3}}, pts)
}

func TestDecodePCD_FieldOrderAndCounts(t *testing.T) {
	input := "FIELDS normal z y x\nCOUNT 3 1 1 1\nPOINTS 1\nDATA ascii\n0 0 1 30 20 10\n"
	pts, err := DecodePCD(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []r3.Vector{{X: 10, Y: 20, Z: 30}}, pts)
}

func TestDecodePCD_Errors(t *testing.T) {
	tests := map[string]string{
		"binary":         "FIELDS x y z\nPOINTS 1\nDATA binary\n",
		"missing data":   "FIELDS x y z\nPOINTS 1\n",
		"missing fields": "FIELDS x y\nPOINTS 1\nDATA ascii\n1 2\n",
		"count mismatch": "FIELDS x y z\nPOINTS 2\nDATA ascii\n1 2 3\n",
		"bad number":     "FIELDS x y z\nPOINTS 1\nDATA ascii\n1 two 3\n",
		"unknown key":    "FIELDZ x y z\nDATA ascii\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePCD(strings.NewReader(input))
			assert.Error(t, err)
		})
	}

	_, err := DecodePCD(strings.NewReader("FIELDS x y z\nDATA binary_compressed\n"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecodeXYZ(t *testing.T) {
	input := "# comment\n1 2 3\n\n4 5 6 255 0 0\n"
	pts, err := DecodeXYZ(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}, pts)

	_, err = DecodeXYZ(strings.NewReader("1 2\n"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("a/b/bs000_N_N_0.PCD")
	require.NoError(t, err)
	assert.Equal(t, FormatPCD, f)

	_, err = FormatFromPath("cloud.ply")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
