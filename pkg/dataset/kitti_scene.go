package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"splatload/pkg/kitti"
	"splatload/pkg/scene"
)

// kittiFrame pairs one pose-chain entry with the image it was logged
// against, before pose normalization.
type kittiFrame struct {
	pose      mgl64.Mat4
	imagePath string
}

// collectKittiFrames walks the configured contiguous frame range and
// gathers the camera-0 (and optionally camera-1) pose/image pairs. A
// frame in range with no logged pose is a format error: the pose chain
// cannot tolerate gaps.
func collectKittiFrames(root string, calib *kitti.Calibration, opts *Options) ([]kittiFrame, error) {
	seqDir := filepath.Join(root, "data_poses", opts.Kitti.Sequence)
	camToWorldPath := filepath.Join(seqDir, "cam0_to_world.txt")
	camToWorld, err := kitti.ReadCamToWorld(camToWorldPath)
	if err != nil {
		return nil, &scene.DatasetFormatError{Path: camToWorldPath, Reason: err.Error()}
	}

	stereo := opts.Kitti.Stereo && calib.HasStereo()
	var (
		sysPoses  map[int]mgl64.Mat4
		camToPose mgl64.Mat4
	)
	if stereo {
		camToPosePath := filepath.Join(root, "calibration", "calib_cam_to_pose.txt")
		camToPose, err = kitti.ReadCamToPose(camToPosePath, "image_01")
		if err != nil {
			return nil, &scene.DatasetFormatError{Path: camToPosePath, Reason: err.Error()}
		}
		posesPath := filepath.Join(seqDir, "poses.txt")
		sysPoses, err = kitti.ReadSystemPoses(posesPath)
		if err != nil {
			return nil, &scene.DatasetFormatError{Path: posesPath, Reason: err.Error()}
		}
	}

	imageDir := func(camera string) string {
		return filepath.Join(root, opts.Kitti.Sequence, camera, "data_rect")
	}

	var frames []kittiFrame
	for idx := opts.Kitti.StartIndex; idx < opts.Kitti.StartIndex+opts.Kitti.FrameCount; idx++ {
		pose, ok := camToWorld[idx]
		if !ok {
			return nil, &scene.DatasetFormatError{
				Path:   camToWorldPath,
				Reason: fmt.Sprintf("no pose logged for frame %d", idx),
			}
		}
		frames = append(frames, kittiFrame{
			pose:      pose,
			imagePath: filepath.Join(imageDir("image_00"), fmt.Sprintf("%010d.png", idx)),
		})

		if stereo {
			sysPose, ok := sysPoses[idx]
			if !ok {
				return nil, &scene.DatasetFormatError{
					Path:   filepath.Join(seqDir, "poses.txt"),
					Reason: fmt.Sprintf("no system pose logged for frame %d", idx),
				}
			}
			frames = append(frames, kittiFrame{
				pose:      kitti.StereoPose(sysPose, camToPose, calib.RRect01),
				imagePath: filepath.Join(imageDir("image_01"), fmt.Sprintf("%010d.png", idx)),
			})
		}
	}
	return frames, nil
}

// loadKitti360 reads a rig-log dataset: intrinsics from the perspective
// calibration, camera-to-world poses from the drive logs, and a bounded
// contiguous range of rectified frames. Poses are re-based onto the
// first frame and rescaled by the terminal displacement, so the scene is
// expressed in units of the drive's depth extent.
func loadKitti360(root string, opts *Options) (*scene.Descriptor, error) {
	calibPath := filepath.Join(root, "calibration", "perspective.txt")
	calib, err := kitti.ReadPerspective(calibPath)
	if err != nil {
		return nil, &scene.DatasetFormatError{Path: calibPath, Reason: err.Error()}
	}

	frames, err := collectKittiFrames(root, calib, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Infof("reading %d rig frames", len(frames))

	poses := make([]mgl64.Mat4, len(frames))
	for i := range frames {
		poses[i] = frames[i].pose
	}
	poses, err = kitti.NormalizePoses(poses)
	if err != nil {
		return nil, &scene.DatasetFormatError{Path: root, Reason: err.Error()}
	}

	focal := calib.Focal()
	records := make([]scene.CameraRecord, len(frames))
	err = unifyIndexed(len(frames), opts.Workers, opts.Progress, func(i int) error {
		img, err := decodeImage(opts.Images, frames[i].imagePath)
		if err != nil {
			return err
		}
		flattened := compositeOnBackground(img, opts.WhiteBackground)
		width := flattened.Bounds().Dx()
		height := flattened.Bounds().Dy()

		w2c := poses[i]
		var rot mgl64.Mat3
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				// stored transposed at the record boundary
				rot.Set(col, row, w2c.At(row, col))
			}
		}

		records[i] = scene.CameraRecord{
			ID:          i,
			Rotation:    rot,
			Translation: r3.Vector{X: w2c.At(0, 3), Y: w2c.At(1, 3), Z: w2c.At(2, 3)},
			FovX:        focalToFov(focal, float64(width)),
			FovY:        focalToFov(focal, float64(height)),
			Image:       flattened,
			ImagePath:   frames[i].imagePath,
			ImageName:   fmt.Sprintf("kitti360_%04d", i),
			Width:       width,
			Height:      height,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// rig frames have no stable name ordering; the split runs over the
	// original enumeration order
	train, test := scene.IndexHoldout(records, opts.Kitti.TestEvery, opts.Eval)
	norm := scene.ComputeNormalization(train)

	// rig logs carry no reconstruction of their own; fall back to the
	// synthetic prior unless an earlier load already persisted one
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
