package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"splatload/pkg/scene"
)

// transformsManifest is the synthetic-scene JSON document: one shared
// horizontal field of view and a list of frames with camera-to-world
// transforms.
type transformsManifest struct {
	CameraAngleX float64 `json:"camera_angle_x"`
	Frames       []struct {
		FilePath        string        `json:"file_path"`
		TransformMatrix [4][4]float64 `json:"transform_matrix"`
	} `json:"frames"`
}

// readTransforms parses one manifest and unifies its frames. baseID
// offsets record ids so the train and test manifests never collide.
func readTransforms(root, name string, baseID int, opts *Options) ([]scene.CameraRecord, error) {
	path := filepath.Join(root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &scene.DatasetFormatError{Path: path, Reason: fmt.Sprintf("reading manifest: %v", err)}
	}
	var manifest transformsManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &scene.DatasetFormatError{Path: path, Reason: fmt.Sprintf("parsing manifest: %v", err)}
	}
	if manifest.CameraAngleX <= 0 {
		return nil, &scene.DatasetFormatError{Path: path, Reason: "manifest has no camera_angle_x"}
	}

	fovX := manifest.CameraAngleX
	records := make([]scene.CameraRecord, len(manifest.Frames))
	err = unifyIndexed(len(manifest.Frames), opts.Workers, opts.Progress, func(i int) error {
		frame := manifest.Frames[i]

		// The manifest stores camera-to-world transforms in a Y-up,
		// Z-back axis convention. Negating the second and third columns
		// of the rotation block converts to the canonical Y-down,
		// Z-forward convention before inversion.
		c2w := mgl64.Ident4()
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				v := frame.TransformMatrix[row][col]
				if row < 3 && (col == 1 || col == 2) {
					v = -v
				}
				c2w.Set(row, col, v)
			}
		}
		w2c := c2w.Inv()

		var rot mgl64.Mat3
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				// stored transposed at the record boundary
				rot.Set(col, row, w2c.At(row, col))
			}
		}

		imagePath := filepath.Join(root, frame.FilePath+opts.Extension)
		img, err := decodeImage(opts.Images, imagePath)
		if err != nil {
			return err
		}
		flattened := compositeOnBackground(img, opts.WhiteBackground)
		width := flattened.Bounds().Dx()
		height := flattened.Bounds().Dy()

		records[i] = scene.CameraRecord{
			ID:          baseID + i,
			Rotation:    rot,
			Translation: r3.Vector{X: w2c.At(0, 3), Y: w2c.At(1, 3), Z: w2c.At(2, 3)},
			FovX:        fovX,
			FovY:        focalToFov(fovToFocal(fovX, float64(width)), float64(height)),
			Image:       flattened,
			ImagePath:   imagePath,
			ImageName:   imageStem(imagePath),
			Width:       width,
			Height:      height,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// loadBlender reads a synthetic-manifest dataset. Both manifests are
// always read; with evaluation off the test cameras are merged back into
// the train set.
func loadBlender(root string, opts *Options) (*scene.Descriptor, error) {
	opts.Logger.Info("reading training transforms")
	train, err := readTransforms(root, "transforms_train.json", 0, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("reading test transforms")
	test, err := readTransforms(root, "transforms_test.json", len(train), opts)
	if err != nil {
		return nil, err
	}

	if !opts.Eval {
		train = append(train, test...)
		test = nil
	}

	norm := scene.ComputeNormalization(train)

	// synthetic scenes carry no reconstruction, so the prior is random
	plyPath := filepath.Join(root, "points3d.ply")
	if err := ensureSynthesized(plyPath, opts.Seed, opts.Logger); err != nil {
		return nil, err
	}

	return &scene.Descriptor{
		PointCloud:     fetchContainer(plyPath, opts.Logger),
		TrainCameras:   train,
		TestCameras:    test,
		Normalization:  norm,
		PointCloudPath: plyPath,
	}, nil
}
