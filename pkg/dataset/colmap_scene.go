package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/golang/geo/r3"

	"splatload/pkg/colmap"
	"splatload/pkg/scene"
)

// readColmapTables loads the extrinsics and intrinsics tables, preferring
// the binary encodings and silently falling back to the text encodings
// when either binary table cannot be read.
func readColmapTables(sparseDir string) ([]colmap.Image, map[int]colmap.Camera, error) {
	images, errImg := colmap.ReadExtrinsicsBinary(filepath.Join(sparseDir, "images.bin"))
	cameras, errCam := colmap.ReadIntrinsicsBinary(filepath.Join(sparseDir, "cameras.bin"))
	if errImg == nil && errCam == nil {
		return images, cameras, nil
	}

	images, err := colmap.ReadExtrinsicsText(filepath.Join(sparseDir, "images.txt"))
	if err != nil {
		return nil, nil, &scene.DatasetFormatError{
			Path:   filepath.Join(sparseDir, "images.txt"),
			Reason: fmt.Sprintf("no readable extrinsics table: %v", err),
		}
	}
	cameras, err = colmap.ReadIntrinsicsText(filepath.Join(sparseDir, "cameras.txt"))
	if err != nil {
		return nil, nil, &scene.DatasetFormatError{
			Path:   filepath.Join(sparseDir, "cameras.txt"),
			Reason: fmt.Sprintf("no readable intrinsics table: %v", err),
		}
	}
	return images, cameras, nil
}

// unifyColmapCameras resolves each extrinsics record against its
// intrinsics and image file, producing canonical camera records in the
// extrinsics enumeration order.
func unifyColmapCameras(images []colmap.Image, cameras map[int]colmap.Camera, imagesDir string, opts *Options) ([]scene.CameraRecord, error) {
	records := make([]scene.CameraRecord, len(images))
	err := unifyIndexed(len(images), opts.Workers, opts.Progress, func(i int) error {
		extr := images[i]
		intr, ok := cameras[extr.CameraID]
		if !ok {
			return &scene.DatasetFormatError{
				Path:   imagesDir,
				Reason: fmt.Sprintf("image %q references unknown camera id %d", extr.Name, extr.CameraID),
			}
		}

		var fovX, fovY float64
		switch intr.Model {
		case "SIMPLE_PINHOLE":
			fovX = focalToFov(intr.Params[0], float64(intr.Width))
			fovY = focalToFov(intr.Params[0], float64(intr.Height))
		case "PINHOLE":
			fovX = focalToFov(intr.Params[0], float64(intr.Width))
			fovY = focalToFov(intr.Params[1], float64(intr.Height))
		default:
			return &scene.UnsupportedCameraModelError{Model: intr.Model}
		}

		imagePath := filepath.Join(imagesDir, filepath.Base(extr.Name))
		img, err := decodeImage(opts.Images, imagePath)
		if err != nil {
			return err
		}

		records[i] = scene.CameraRecord{
			ID:          extr.ID,
			Rotation:    extr.RotationMatrix().Transpose(),
			Translation: extr.Translation,
			FovX:        fovX,
			FovY:        fovY,
			Image:       img,
			ImagePath:   imagePath,
			ImageName:   imageStem(imagePath),
			Width:       intr.Width,
			Height:      intr.Height,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// loadColmap reads a COLMAP export: camera tables under sparse/0, images
// from the configured subfolder, and the sparse reconstruction as the
// point-cloud source.
func loadColmap(root string, opts *Options) (*scene.Descriptor, error) {
	sparseDir := filepath.Join(root, "sparse", "0")

	images, cameras, err := readColmapTables(sparseDir)
	if err != nil {
		return nil, err
	}
	opts.Logger.Infof("reading %d cameras", len(images))

	records, err := unifyColmapCameras(images, cameras, filepath.Join(root, opts.ImagesDir), opts)
	if err != nil {
		return nil, err
	}

	scene.SortByName(records)
	train, test := scene.ModuloHoldout(records, opts.HoldoutStride, opts.Eval)
	norm := scene.ComputeNormalization(train)

	plyPath := filepath.Join(sparseDir, "points3D.ply")
	err = ensureContainer(plyPath, func() ([]r3.Vector, []r3.Vector, error) {
		opts.Logger.Info("converting points3D to a point cloud container, this happens only on the first load")
		points, colors, err := colmap.ReadPoints3DBinary(filepath.Join(sparseDir, "points3D.bin"))
		if err == nil {
			return points, colors, nil
		}
		points, colors, err = colmap.ReadPoints3DText(filepath.Join(sparseDir, "points3D.txt"))
		if err != nil {
			return nil, nil, &scene.DatasetFormatError{
				Path:   filepath.Join(sparseDir, "points3D.txt"),
				Reason: fmt.Sprintf("no readable points3D table: %v", err),
			}
		}
		return points, colors, nil
	})
	if err != nil {
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
