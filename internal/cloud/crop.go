package cloud

import "github.com/golang/geo/r3"

// DefaultCropRadius is the nose-region radius in scan units.
const DefaultCropRadius = 40.0

// CropSphere returns the points of c whose Euclidean distance to center is at
// most radius. The result is a new cloud and may be empty.
func CropSphere(c PointCloud, center r3.Vector, radius float64) PointCloud {
	out := make([]r3.Vector, 0, len(c.Points)/4)
	for _, p := range c.Points {
		if p.Sub(center).Norm() <= radius {
			out = append(out, p)
		}
	}
	return PointCloud{Points: out}
}
