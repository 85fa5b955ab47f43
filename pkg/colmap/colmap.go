// Package colmap decodes the camera and point tables written by the
// COLMAP structure-from-motion tool: extrinsics (images), intrinsics
// (cameras) and sparse points, each in a compact binary encoding with an
// equivalent text form.
package colmap

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Image is one extrinsics record: a camera pose observing one image.
// Rotation is carried as a unit quaternion in COLMAP's (w, x, y, z) order.
type Image struct {
	ID          int
	Rotation    quat.Number
	Translation r3.Vector
	CameraID    int
	Name        string
}

// Camera is one intrinsics record.
type Camera struct {
	ID     int
	Model  string
	Width  int
	Height int
	Params []float64
}

// cameraModel describes one entry of COLMAP's camera-model table. The
// parameter count is needed to walk the binary stream even for models
// that are rejected later at unification.
type cameraModel struct {
	name      string
	numParams int
}

var cameraModels = map[int32]cameraModel{
	0:  {"SIMPLE_PINHOLE", 3},
	1:  {"PINHOLE", 4},
	2:  {"SIMPLE_RADIAL", 4},
	3:  {"RADIAL", 5},
	4:  {"OPENCV", 8},
	5:  {"OPENCV_FISHEYE", 8},
	6:  {"FULL_OPENCV", 12},
	7:  {"FOV", 5},
	8:  {"SIMPLE_RADIAL_FISHEYE", 4},
	9:  {"RADIAL_FISHEYE", 5},
	10: {"THIN_PRISM_FISHEYE", 12},
}

var modelParamCounts = func() map[string]int {
	m := make(map[string]int, len(cameraModels))
	for _, cm := range cameraModels {
		m[cm.name] = cm.numParams
	}
	return m
}()

// RotationMatrix converts the record's quaternion into a 3x3 rotation
// matrix (world-to-camera). The quaternion is normalized first so that
// text-encoded values with rounding drift still yield an orthonormal
// matrix.
func (im Image) RotationMatrix() mgl64.Mat3 {
	q := im.Rotation
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	var m mgl64.Mat3
	m.Set(0, 0, 1-2*y*y-2*z*z)
	m.Set(0, 1, 2*x*y-2*w*z)
	m.Set(0, 2, 2*x*z+2*w*y)
	m.Set(1, 0, 2*x*y+2*w*z)
	m.Set(1, 1, 1-2*x*x-2*z*z)
	m.Set(1, 2, 2*y*z-2*w*x)
	m.Set(2, 0, 2*x*z-2*w*y)
	m.Set(2, 1, 2*y*z+2*w*x)
	m.Set(2, 2, 1-2*x*x-2*y*y)
	return m
}
