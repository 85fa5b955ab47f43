package kitti

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadPerspective(t *testing.T) {
	t.Run("camera 0 only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "perspective.txt")
		writeFile(t, path, strings.Join([]string{
			"calib_time: 2013-05-28",
			"P_rect_00: 552.554 0 682.05 0 0 552.554 238.769 0 0 0 1 0",
		}, "\n"))

		calib, err := ReadPerspective(path)
		require.NoError(t, err)
		assert.InDelta(t, 552.554, calib.Focal(), 1e-9)
		assert.False(t, calib.HasStereo())
	})

	t.Run("stereo entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "perspective.txt")
		writeFile(t, path, strings.Join([]string{
			"P_rect_00: 552.554 0 682.05 0 0 552.554 238.769 0 0 0 1 0",
			"P_rect_01: 552.554 0 682.05 -329.81 0 552.554 238.769 0 0 0 1 0",
			"R_rect_01: 1 0 0 0 1 0 0 0 1",
		}, "\n"))

		calib, err := ReadPerspective(path)
		require.NoError(t, err)
		assert.True(t, calib.HasStereo())
		assert.InDelta(t, 1.0, calib.RRect01.At(0, 0), 1e-12)
		assert.InDelta(t, 1.0, calib.RRect01.At(3, 3), 1e-12)
	})

	t.Run("missing P_rect_00", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "perspective.txt")
		writeFile(t, path, "R_rect_01: 1 0 0 0 1 0 0 0 1\n")
		_, err := ReadPerspective(path)
		assert.Error(t, err)
	})
}

func TestReadCamToWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam0_to_world.txt")
	// frame index, then a row-major 4x4 matrix
	writeFile(t, path, strings.Join([]string{
		"3 1 0 0 10 0 1 0 20 0 0 1 30 0 0 0 1",
		"4 1 0 0 11 0 1 0 21 0 0 1 31 0 0 0 1",
	}, "\n"))

	poses, err := ReadCamToWorld(path)
	require.NoError(t, err)
	require.Len(t, poses, 2)
	assert.InDelta(t, 10.0, poses[3].At(0, 3), 1e-12)
	assert.InDelta(t, 31.0, poses[4].At(2, 3), 1e-12)

	t.Run("malformed line", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "cam0_to_world.txt")
		writeFile(t, bad, "3 1 0 0\n")
		_, err := ReadCamToWorld(bad)
		assert.Error(t, err)
	})
}

func TestReadSystemPoses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.txt")
	writeFile(t, path, "5 1 0 0 1.5 0 1 0 2.5 0 0 1 3.5\n")

	poses, err := ReadSystemPoses(path)
	require.NoError(t, err)
	require.Len(t, poses, 1)
	assert.InDelta(t, 1.5, poses[5].At(0, 3), 1e-12)
	assert.InDelta(t, 1.0, poses[5].At(3, 3), 1e-12)
}

func TestReadCamToPose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib_cam_to_pose.txt")
	writeFile(t, path, strings.Join([]string{
		"image_00: 1 0 0 0.1 0 1 0 0.2 0 0 1 0.3",
		"image_01: 1 0 0 0.5 0 1 0 0.6 0 0 1 0.7",
	}, "\n"))

	m, err := ReadCamToPose(path, "image_01")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.At(0, 3), 1e-12)
	assert.InDelta(t, 0.7, m.At(2, 3), 1e-12)

	_, err = ReadCamToPose(path, "image_02")
	assert.Error(t, err)
}

// translatedPose builds a pure-translation 4x4 pose.
func translatedPose(x, y, z float64) mgl64.Mat4 {
	m := mgl64.Ident4()
	m.Set(0, 3, x)
	m.Set(1, 3, y)
	m.Set(2, 3, z)
	return m
}

func TestNormalizePoses(t *testing.T) {
	t.Run("first frame becomes exact identity", func(t *testing.T) {
		poses := []mgl64.Mat4{
			translatedPose(4, 5, 6),
			translatedPose(5, 5, 8),
			translatedPose(6, 5, 10),
		}
		out, err := NormalizePoses(poses)
		require.NoError(t, err)
		assert.Equal(t, mgl64.Ident4(), out[0])
	})

	t.Run("terminal depth is exactly one", func(t *testing.T) {
		poses := []mgl64.Mat4{
			translatedPose(0, 0, 0),
			translatedPose(1, 0, 2),
			translatedPose(2, 0, 8),
		}
		out, err := NormalizePoses(poses)
		require.NoError(t, err)
		assert.Equal(t, 1.0, out[len(out)-1].At(2, 3))
		// other translations share the same scale
		assert.InDelta(t, 0.125, out[1].At(0, 3), 1e-12)
		assert.InDelta(t, 0.25, out[1].At(2, 3), 1e-12)
	})

	t.Run("backward drive keeps sign", func(t *testing.T) {
		poses := []mgl64.Mat4{
			translatedPose(0, 0, 0),
			translatedPose(0, 0, -4),
		}
		out, err := NormalizePoses(poses)
		require.NoError(t, err)
		// dividing by the signed terminal depth yields exactly 1
		assert.Equal(t, 1.0, out[1].At(2, 3))
	})

	t.Run("rotated first frame", func(t *testing.T) {
		rot := mgl64.Ident4()
		c, s := math.Cos(0.5), math.Sin(0.5)
		rot.Set(0, 0, c)
		rot.Set(0, 1, -s)
		rot.Set(1, 0, s)
		rot.Set(1, 1, c)
		rot.Set(2, 3, 3)

		poses := []mgl64.Mat4{rot, translatedPose(1, 2, 7)}
		out, err := NormalizePoses(poses)
		require.NoError(t, err)
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				want := 0.0
				if row == col {
					want = 1.0
				}
				assert.InDelta(t, want, out[0].At(row, col), 1e-12,
					fmt.Sprintf("identity at (%d,%d)", row, col))
			}
		}
	})

	t.Run("zero terminal depth", func(t *testing.T) {
		poses := []mgl64.Mat4{translatedPose(0, 0, 0), translatedPose(1, 0, 0)}
		_, err := NormalizePoses(poses)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NormalizePoses(nil)
		assert.Error(t, err)
	})
}

func TestStereoPose(t *testing.T) {
	sys := translatedPose(10, 0, 0)
	camToPose := translatedPose(0, 1, 0)
	rect := mgl64.Ident4()

	m := StereoPose(sys, camToPose, rect)
	assert.InDelta(t, 10.0, m.At(0, 3), 1e-12)
	assert.InDelta(t, 1.0, m.At(1, 3), 1e-12)
}
