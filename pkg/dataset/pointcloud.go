package dataset

import (
	"math/rand"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"splatload/pkg/ply"
	"splatload/pkg/scene"
)

const (
	// synthPointCount is the size of the synthetic fallback cloud.
	synthPointCount = 100_000

	// synthHalfWidth bounds the cube the synthetic positions are drawn
	// from, matching the extent of the synthetic scenes.
	synthHalfWidth = 1.3

	// shC0 is the zeroth-order spherical-harmonics basis constant used
	// to map random draws to plausible RGB colors.
	shC0 = 0.28209479177387814
)

// shToRGB maps a zeroth-order spherical-harmonics coefficient to a color
// channel in [0,1].
func shToRGB(v float64) float64 {
	c := 0.5 + shC0*v
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// synthesizePoints draws n positions uniformly from the synthetic cube
// and colors them through the spherical-harmonics DC-term transform.
func synthesizePoints(n int, rng *rand.Rand) (points, colors []r3.Vector) {
	points = make([]r3.Vector, n)
	colors = make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		points[i] = r3.Vector{
			X: rng.Float64()*2*synthHalfWidth - synthHalfWidth,
			Y: rng.Float64()*2*synthHalfWidth - synthHalfWidth,
			Z: rng.Float64()*2*synthHalfWidth - synthHalfWidth,
		}
		colors[i] = r3.Vector{
			X: shToRGB(rng.Float64() / 255.0),
			Y: shToRGB(rng.Float64() / 255.0),
			Z: shToRGB(rng.Float64() / 255.0),
		}
	}
	return points, colors
}

// ensureContainer persists a point-cloud container at path from src when
// none exists yet. The container is write-once: an existing file is never
// rewritten, so repeat loads of the same dataset reuse the first
// conversion. Concurrent first-time loads of one dataset root are out of
// contract; callers must serialize them.
func ensureContainer(path string, src func() (points, colors []r3.Vector, err error)) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	points, colors, err := src()
	if err != nil {
		return err
	}
	return ply.Write(path, points, colors)
}

// ensureSynthesized persists a synthetic fallback cloud at path when no
// container exists. This is the geometry prior for formats that carry no
// reconstruction of their own.
func ensureSynthesized(path string, seed int64, log *zap.SugaredLogger) error {
	return ensureContainer(path, func() ([]r3.Vector, []r3.Vector, error) {
		log.Infof("no point cloud found, generating random point cloud (%d points)", synthPointCount)
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		points, colors := synthesizePoints(synthPointCount, rand.New(rand.NewSource(seed)))
		return points, colors, nil
	})
}

// fetchContainer reads the container back as the canonical point cloud.
// A container that exists but fails to parse is reported and treated as
// "no geometric prior" rather than a load failure.
func fetchContainer(path string, log *zap.SugaredLogger) *scene.PointCloud {
	cloud, err := ply.Read(path, true)
	if err != nil {
		log.Warnw("continuing without geometric prior",
			"error", &scene.ContainerParseError{Path: path, Err: err})
		return nil
	}
	return &scene.PointCloud{Points: cloud.Points, Colors: cloud.Colors, Normals: cloud.Normals}
}
