package colmap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// The text encodings are line-oriented with '#' comment lines. They are
// the fallback when the binary tables are absent or unreadable.

func parseFloats(fields []string) ([]float64, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// ReadExtrinsicsText decodes images.txt. Each image occupies two lines:
// the pose line (IMAGE_ID QW QX QY QZ TX TY TZ CAMERA_ID NAME) and a 2D
// point line that is skipped.
func ReadExtrinsicsText(path string) ([]Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var images []Image
	poseLine := true
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !poseLine {
			// 2D point track line; may be empty for images with no points
			poseLine = true
			continue
		}
		if line == "" {
			continue
		}
		poseLine = false

		fields := strings.Fields(line)
		if len(fields) < 10 {
			return nil, fmt.Errorf("%s: malformed image line %q", path, line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid image id %q", path, fields[0])
		}
		vals, err := parseFloats(fields[1:8])
		if err != nil {
			return nil, fmt.Errorf("%s: image %d: %w", path, id, err)
		}
		camID, err := strconv.Atoi(fields[8])
		if err != nil {
			return nil, fmt.Errorf("%s: image %d: invalid camera id %q", path, id, fields[8])
		}

		images = append(images, Image{
			ID:          id,
			Rotation:    quat.Number{Real: vals[0], Imag: vals[1], Jmag: vals[2], Kmag: vals[3]},
			Translation: r3.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
			CameraID:    camID,
			Name:        fields[9],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// ReadIntrinsicsText decodes cameras.txt
// (CAMERA_ID MODEL WIDTH HEIGHT PARAMS...).
func ReadIntrinsicsText(path string) (map[int]Camera, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cameras := make(map[int]Camera)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("%s: malformed camera line %q", path, line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid camera id %q", path, fields[0])
		}
		model := fields[1]
		wantParams, ok := modelParamCounts[model]
		if !ok {
			return nil, fmt.Errorf("%s: camera %d: unknown model %q", path, id, model)
		}
		width, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%s: camera %d: invalid width %q", path, id, fields[2])
		}
		height, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%s: camera %d: invalid height %q", path, id, fields[3])
		}
		params, err := parseFloats(fields[4:])
		if err != nil {
			return nil, fmt.Errorf("%s: camera %d: %w", path, id, err)
		}
		if len(params) != wantParams {
			return nil, fmt.Errorf("%s: camera %d: model %s expects %d params, got %d",
				path, id, model, wantParams, len(params))
		}

		cameras[id] = Camera{ID: id, Model: model, Width: width, Height: height, Params: params}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cameras, nil
}

// ReadPoints3DText decodes points3D.txt
// (POINT3D_ID X Y Z R G B ERROR TRACK...) into positions and [0,1]
// colors.
func ReadPoints3DText(path string) (points, colors []r3.Vector, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			return nil, nil, fmt.Errorf("%s: malformed point line %q", path, line)
		}
		vals, err := parseFloats(fields[1:7])
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}

		points = append(points, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
		colors = append(colors, r3.Vector{X: vals[3] / 255.0, Y: vals[4] / 255.0, Z: vals[5] / 255.0})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return points, colors, nil
}
