package dataset

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"splatload/pkg/ply"
)

func TestShToRGB(t *testing.T) {
	assert.Equal(t, 0.5, shToRGB(0))
	assert.InDelta(t, 0.5+shC0*0.1, shToRGB(0.1), 1e-12)
	assert.Equal(t, 1.0, shToRGB(10))
	assert.Equal(t, 0.0, shToRGB(-10))
}

func TestSynthesizePoints(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points, colors := synthesizePoints(5000, rng)
	require.Len(t, points, 5000)
	require.Len(t, colors, 5000)

	for i := range points {
		assert.LessOrEqual(t, math.Abs(points[i].X), synthHalfWidth)
		assert.LessOrEqual(t, math.Abs(points[i].Y), synthHalfWidth)
		assert.LessOrEqual(t, math.Abs(points[i].Z), synthHalfWidth)

		// SH draws are in [0, 1/255], so colors stay near the DC offset
		for _, c := range []float64{colors[i].X, colors[i].Y, colors[i].Z} {
			assert.GreaterOrEqual(t, c, 0.5)
			assert.LessOrEqual(t, c, 0.5+shC0/255+1e-12)
		}
	}
}

func TestEnsureContainer(t *testing.T) {
	t.Run("writes when absent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "points.ply")
		err := ensureContainer(path, func() ([]r3.Vector, []r3.Vector, error) {
			return []r3.Vector{{X: 1}}, []r3.Vector{{X: 1}}, nil
		})
		require.NoError(t, err)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("never rewrites an existing container", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "points.ply")
		require.NoError(t, ply.Write(path, []r3.Vector{{X: 2}}, []r3.Vector{{X: 1}}))

		err := ensureContainer(path, func() ([]r3.Vector, []r3.Vector, error) {
			t.Fatal("source must not be consulted when the container exists")
			return nil, nil, nil
		})
		require.NoError(t, err)

		cloud, err := ply.Read(path, false)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, cloud.Points[0].X, 1e-5)
	})
}

func TestEnsureSynthesized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points3d.ply")
	log := zap.NewNop().Sugar()
	require.NoError(t, ensureSynthesized(path, 11, log))

	cloud, err := ply.Read(path, true)
	require.NoError(t, err)
	assert.Equal(t, synthPointCount, len(cloud.Points))
	for _, n := range cloud.Normals {
		assert.Equal(t, r3.Vector{}, n)
	}

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "points3d.ply")
		require.NoError(t, ensureSynthesized(other, 11, log))
		again, err := ply.Read(other, false)
		require.NoError(t, err)
		assert.Equal(t, cloud.Points[:100], again.Points[:100])
	})
}

func TestFetchContainer(t *testing.T) {
	log := zap.NewNop().Sugar()

	t.Run("reads a valid container", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "points.ply")
		require.NoError(t, ply.Write(path, []r3.Vector{{X: 1, Y: 2, Z: 3}}, []r3.Vector{{Z: 1}}))

		cloud := fetchContainer(path, log)
		require.NotNil(t, cloud)
		assert.Equal(t, 1, cloud.Len())
		assert.NotNil(t, cloud.Normals)
	})

	t.Run("corrupt container means no prior", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "points.ply")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
		assert.Nil(t, fetchContainer(path, log))
	})

	t.Run("missing container means no prior", func(t *testing.T) {
		assert.Nil(t, fetchContainer(filepath.Join(t.TempDir(), "nope.ply"), log))
	})
}
