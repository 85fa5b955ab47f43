// Package kitti decodes KITTI-360 rig logs: the perspective calibration
// file, rig-offset calibration, and the per-frame pose tables, plus the
// pose-chain normalization that re-bases a drive onto its first frame.
package kitti

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Calibration holds the rectified perspective intrinsics of the rig. P00
// and P01 are the 3x4 projection matrices of the two forward cameras;
// RRect01 is the rectifying rotation of camera 1. Only P00 is required;
// the camera-1 entries are present when the file carries them.
type Calibration struct {
	P00     []float64
	P01     []float64
	RRect01 mgl64.Mat4
	hasP01  bool
	hasRect bool
}

// Focal returns the shared focal length of the rectified camera 0.
func (c *Calibration) Focal() float64 { return c.P00[0] }

// HasStereo reports whether the calibration carries the camera-1 entries
// needed to chain stereo poses.
func (c *Calibration) HasStereo() bool { return c.hasP01 && c.hasRect }

// ReadPerspective parses calibration/perspective.txt. Lines are
// "<key>: v0 v1 ..."; unknown keys are ignored.
func ReadPerspective(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	calib := &Calibration{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "P_rect_00:":
			if calib.P00, err = parseFloats(fields[1:], 12); err != nil {
				return nil, fmt.Errorf("%s: P_rect_00: %w", path, err)
			}
		case "P_rect_01:":
			if calib.P01, err = parseFloats(fields[1:], 12); err != nil {
				return nil, fmt.Errorf("%s: P_rect_01: %w", path, err)
			}
			calib.hasP01 = true
		case "R_rect_01:":
			vals, err := parseFloats(fields[1:], 9)
			if err != nil {
				return nil, fmt.Errorf("%s: R_rect_01: %w", path, err)
			}
			calib.RRect01 = mgl64.Ident4()
			for row := 0; row < 3; row++ {
				for col := 0; col < 3; col++ {
					calib.RRect01.Set(row, col, vals[row*3+col])
				}
			}
			calib.hasRect = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if calib.P00 == nil {
		return nil, fmt.Errorf("%s: missing P_rect_00 entry", path)
	}
	return calib, nil
}

// ReadCamToWorld parses a cam0_to_world.txt pose log: each line is a
// frame index followed by a row-major 4x4 camera-to-world matrix.
func ReadCamToWorld(path string) (map[int]mgl64.Mat4, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	poses := make(map[int]mgl64.Mat4)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 17 {
			return nil, fmt.Errorf("%s: pose line has %d values, want 17", path, len(fields))
		}
		frame, err := parseFrameIndex(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		vals, err := parseFloats(fields[1:], 16)
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", path, frame, err)
		}
		poses[frame] = mat4FromRowMajor(vals)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("%s: no poses found", path)
	}
	return poses, nil
}

// ReadSystemPoses parses a poses.txt log: each line is a frame index
// followed by a row-major 3x4 system-to-world transform.
func ReadSystemPoses(path string) (map[int]mgl64.Mat4, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	poses := make(map[int]mgl64.Mat4)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 13 {
			return nil, fmt.Errorf("%s: pose line has %d values, want 13", path, len(fields))
		}
		frame, err := parseFrameIndex(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		vals, err := parseFloats(fields[1:], 12)
		if err != nil {
			return nil, fmt.Errorf("%s: frame %d: %w", path, frame, err)
		}
		poses[frame] = mat4FromRowMajor3x4(vals)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return poses, nil
}

// ReadCamToPose parses calibration/calib_cam_to_pose.txt and returns the
// rig offset of the named camera ("image_01" for the second forward
// camera) as a 4x4 transform.
func ReadCamToPose(path, camera string) (mgl64.Mat4, error) {
	f, err := os.Open(path)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	defer f.Close()

	key := camera + ":"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != key {
			continue
		}
		vals, err := parseFloats(fields[1:], 12)
		if err != nil {
			return mgl64.Mat4{}, fmt.Errorf("%s: %s: %w", path, camera, err)
		}
		return mat4FromRowMajor3x4(vals), nil
	}
	if err := scanner.Err(); err != nil {
		return mgl64.Mat4{}, err
	}
	return mgl64.Mat4{}, fmt.Errorf("%s: no %s entry", path, camera)
}

// StereoPose chains a system pose to the camera-1 frame:
// sysPose * camToPose * inv(RRect01).
func StereoPose(sysPose, camToPose, rRect01 mgl64.Mat4) mgl64.Mat4 {
	return sysPose.Mul4(camToPose).Mul4(rRect01.Inv())
}

// NormalizePoses re-bases a contiguous pose chain onto its first frame
// and rescales all translations by the signed depth component of the
// re-based terminal pose. After normalization the first pose is exactly
// the identity and the terminal pose's depth translation is exactly 1
// (or -1 when the drive moves backwards).
func NormalizePoses(poses []mgl64.Mat4) ([]mgl64.Mat4, error) {
	if len(poses) == 0 {
		return nil, fmt.Errorf("no poses to normalize")
	}

	inv0 := poses[0].Inv()
	out := make([]mgl64.Mat4, len(poses))
	out[0] = mgl64.Ident4()
	for i := 1; i < len(poses); i++ {
		out[i] = inv0.Mul4(poses[i])
	}

	scale := out[len(out)-1].At(2, 3)
	if scale == 0 {
		return nil, fmt.Errorf("terminal pose has zero depth displacement")
	}
	for i := range out {
		for row := 0; row < 3; row++ {
			out[i].Set(row, 3, out[i].At(row, 3)/scale)
		}
	}
	return out, nil
}

func parseFrameIndex(field string) (int, error) {
	// pose logs store the frame index as a float-formatted column
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame index %q: %w", field, err)
	}
	return int(v), nil
}

func parseFloats(fields []string, want int) ([]float64, error) {
	if len(fields) != want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(fields))
	}
	vals := make([]float64, want)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func mat4FromRowMajor(vals []float64) mgl64.Mat4 {
	var m mgl64.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m.Set(row, col, vals[row*4+col])
		}
	}
	return m
}

func mat4FromRowMajor3x4(vals []float64) mgl64.Mat4 {
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			m.Set(row, col, vals[row*4+col])
		}
	}
	return m
}
