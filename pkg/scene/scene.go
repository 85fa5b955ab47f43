// Package scene defines the canonical in-memory scene description produced
// by dataset loading: unified camera records, an optional point cloud, and
// the bounding-sphere normalization consumed by the downstream point-based
// reconstruction pipeline.
package scene

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// CameraRecord is one observed camera: pose, intrinsics and the decoded
// image it was captured with. Records are created once during a load and
// are read-only afterwards; the record exclusively owns its Image buffer.
//
// Rotation is the world-to-camera rotation stored TRANSPOSED relative to
// the natural world-to-camera matrix. The downstream renderer expects the
// transposed layout, so the transpose is part of the record's contract,
// not an artifact of any particular source format. World2View undoes it.
type CameraRecord struct {
	// ID is unique within a single load but not necessarily contiguous.
	ID int

	// Rotation is orthonormal (det +1) within floating tolerance.
	Rotation mgl64.Mat3

	// Translation is the world-to-camera translation.
	Translation r3.Vector

	// FovX and FovY are the horizontal and vertical fields of view in
	// radians, both in (0, pi).
	FovX float64
	FovY float64

	// Image is the decoded, opaque pixel buffer for this camera.
	Image image.Image

	// ImagePath and ImageName identify the source image; they carry
	// provenance only, no filesystem semantics.
	ImagePath string
	ImageName string

	Width  int
	Height int
}

// World2View assembles the 4x4 world-to-camera transform from the stored
// (transposed) rotation and the translation.
func (c *CameraRecord) World2View() mgl64.Mat4 {
	r := c.Rotation.Transpose()
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, r.At(row, col))
		}
	}
	m.Set(0, 3, c.Translation.X)
	m.Set(1, 3, c.Translation.Y)
	m.Set(2, 3, c.Translation.Z)
	return m
}

// Center returns the camera center in world coordinates, i.e. the
// translation column of the inverted world-to-camera transform.
func (c *CameraRecord) Center() r3.Vector {
	inv := c.World2View().Inv()
	return r3.Vector{X: inv.At(0, 3), Y: inv.At(1, 3), Z: inv.At(2, 3)}
}

// Validate checks the record invariants: orthonormal rotation, positive
// image dimensions and fields of view inside (0, pi).
func (c *CameraRecord) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return &DatasetFormatError{Path: c.ImagePath, Reason: "camera has non-positive image dimensions"}
	}
	if c.FovX <= 0 || c.FovX >= math.Pi || c.FovY <= 0 || c.FovY >= math.Pi {
		return &DatasetFormatError{Path: c.ImagePath, Reason: "camera field of view outside (0, pi)"}
	}
	const tol = 1e-6
	if math.Abs(c.Rotation.Det()-1) > tol {
		return &DatasetFormatError{Path: c.ImagePath, Reason: "camera rotation is not orthonormal"}
	}
	return nil
}

// PointCloud is the geometric prior handed to the downstream pipeline.
// Colors are RGB in [0,1]. Normals may be nil when the source container
// does not carry them.
type PointCloud struct {
	Points  []r3.Vector
	Colors  []r3.Vector
	Normals []r3.Vector
}

// Len returns the number of points.
func (p *PointCloud) Len() int { return len(p.Points) }

// Normalization is the translate+radius pair describing the bounding
// sphere of the train-camera centers, scaled by a safety margin. It is a
// scale/offset hint for downstream consumers and is never mutated after
// creation.
type Normalization struct {
	Translate r3.Vector
	Radius    float64
}

// Descriptor is the immutable aggregate produced by a load. Train and
// test cameras are disjoint and together cover the full camera set. A nil
// PointCloud means "no geometric prior" and is a valid state, not an
// error.
type Descriptor struct {
	PointCloud     *PointCloud
	TrainCameras   []CameraRecord
	TestCameras    []CameraRecord
	Normalization  Normalization
	PointCloudPath string
}
