package scene

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

// normalizationMargin pads the bounding radius so the working volume is
// slightly larger than the tightest sphere around the camera centers.
const normalizationMargin = 1.1

// ComputeNormalization derives the scene translate+radius hint from the
// TRAIN camera list. Test cameras must never be passed in: the scale prior
// would otherwise leak evaluation geometry into training.
//
// The center is the mean of all camera centers in world space and the
// radius is the maximum distance from that mean to any center, scaled by
// the safety margin. A single camera yields a zero radius; callers must
// tolerate that degenerate value.
func ComputeNormalization(cameras []CameraRecord) Normalization {
	if len(cameras) == 0 {
		return Normalization{}
	}

	xs := make([]float64, len(cameras))
	ys := make([]float64, len(cameras))
	zs := make([]float64, len(cameras))
	centers := make([]r3.Vector, len(cameras))
	for i := range cameras {
		c := cameras[i].Center()
		centers[i] = c
		xs[i], ys[i], zs[i] = c.X, c.Y, c.Z
	}

	mean := r3.Vector{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
		Z: stat.Mean(zs, nil),
	}

	var maxDist float64
	for _, c := range centers {
		if d := c.Sub(mean).Norm(); d > maxDist {
			maxDist = d
		}
	}

	return Normalization{
		Translate: mean.Mul(-1),
		Radius:    normalizationMargin * maxDist,
	}
}
