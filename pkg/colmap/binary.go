package colmap

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// All COLMAP binary tables are little-endian streams with a leading
// uint64 record count.

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readFloat64s(r io.Reader, n int) ([]float64, error) {
	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vals, nil
}

// readNullString reads bytes up to the terminating NUL.
func readNullString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// ReadExtrinsicsBinary decodes images.bin: per registered image an id,
// pose quaternion, translation, intrinsics reference and image name. The
// trailing 2D point track of each record is skipped.
func ReadExtrinsicsBinary(path string) ([]Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	count, err := readUint64(r)
	if err != nil {
		return nil, fmt.Errorf("reading image count: %w", err)
	}

	images := make([]Image, 0, count)
	for i := uint64(0); i < count; i++ {
		id, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("image %d: reading id: %w", i, err)
		}
		vals, err := readFloat64s(r, 7)
		if err != nil {
			return nil, fmt.Errorf("image %d: reading pose: %w", i, err)
		}
		camID, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("image %d: reading camera id: %w", i, err)
		}
		name, err := readNullString(r)
		if err != nil {
			return nil, fmt.Errorf("image %d: reading name: %w", i, err)
		}
		numPoints2D, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("image %d: reading track length: %w", i, err)
		}
		// each 2D point is x, y (float64) plus a point3D id (int64)
		if _, err := r.Discard(int(numPoints2D) * 24); err != nil {
			return nil, fmt.Errorf("image %d: skipping track: %w", i, err)
		}

		images = append(images, Image{
			ID:          int(id),
			Rotation:    quat.Number{Real: vals[0], Imag: vals[1], Jmag: vals[2], Kmag: vals[3]},
			Translation: r3.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
			CameraID:    int(camID),
			Name:        name,
		})
	}
	return images, nil
}

// ReadIntrinsicsBinary decodes cameras.bin into a map keyed by camera id.
func ReadIntrinsicsBinary(path string) (map[int]Camera, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	count, err := readUint64(r)
	if err != nil {
		return nil, fmt.Errorf("reading camera count: %w", err)
	}

	cameras := make(map[int]Camera, count)
	for i := uint64(0); i < count; i++ {
		id, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("camera %d: reading id: %w", i, err)
		}
		modelID, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("camera %d: reading model: %w", i, err)
		}
		model, ok := cameraModels[modelID]
		if !ok {
			return nil, fmt.Errorf("camera %d: unknown model id %d", i, modelID)
		}
		var width, height uint64
		if width, err = readUint64(r); err != nil {
			return nil, fmt.Errorf("camera %d: reading width: %w", i, err)
		}
		if height, err = readUint64(r); err != nil {
			return nil, fmt.Errorf("camera %d: reading height: %w", i, err)
		}
		params, err := readFloat64s(r, model.numParams)
		if err != nil {
			return nil, fmt.Errorf("camera %d: reading params: %w", i, err)
		}

		cameras[int(id)] = Camera{
			ID:     int(id),
			Model:  model.name,
			Width:  int(width),
			Height: int(height),
			Params: params,
		}
	}
	return cameras, nil
}

// ReadPoints3DBinary decodes points3D.bin into positions and [0,1]
// colors. Reprojection errors and observation tracks are skipped.
func ReadPoints3DBinary(path string) (points, colors []r3.Vector, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	count, err := readUint64(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading point count: %w", err)
	}

	points = make([]r3.Vector, 0, count)
	colors = make([]r3.Vector, 0, count)
	rgb := make([]byte, 3)
	for i := uint64(0); i < count; i++ {
		if _, err := readUint64(r); err != nil { // point3D id
			return nil, nil, fmt.Errorf("point %d: reading id: %w", i, err)
		}
		xyz, err := readFloat64s(r, 3)
		if err != nil {
			return nil, nil, fmt.Errorf("point %d: reading position: %w", i, err)
		}
		if _, err := io.ReadFull(r, rgb); err != nil {
			return nil, nil, fmt.Errorf("point %d: reading color: %w", i, err)
		}
		if _, err := readFloat64s(r, 1); err != nil { // reprojection error
			return nil, nil, fmt.Errorf("point %d: reading error: %w", i, err)
		}
		trackLen, err := readUint64(r)
		if err != nil {
			return nil, nil, fmt.Errorf("point %d: reading track length: %w", i, err)
		}
		// each track element is an image id and a 2D point index (int32 each)
		if _, err := r.Discard(int(trackLen) * 8); err != nil {
			return nil, nil, fmt.Errorf("point %d: skipping track: %w", i, err)
		}

		points = append(points, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
		colors = append(colors, r3.Vector{
			X: float64(rgb[0]) / 255.0,
			Y: float64(rgb[1]) / 255.0,
			Z: float64(rgb[2]) / 255.0,
		})
	}
	return points, colors, nil
}
