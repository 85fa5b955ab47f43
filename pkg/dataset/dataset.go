// Package dataset normalizes heterogeneous camera-calibration and 3D
// reconstruction datasets into the canonical scene description consumed
// by the point-based reconstruction pipeline. Three independent readers
// are supported: COLMAP structure-from-motion exports, synthetic Blender
// transform manifests, and KITTI-360 rig logs. Each reconciles its own
// coordinate convention, camera model and scale ambiguity into one
// CameraRecord shape before split, normalization and assembly.
package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"splatload/pkg/scene"
)

// Kind tags one of the supported dataset families. The readers share a
// return shape but no base type; dispatch is a map from tag to reader.
type Kind int

const (
	// KindColmap is a COLMAP export under sparse/0.
	KindColmap Kind = iota
	// KindBlender is a synthetic scene with transforms_{train,test}.json
	// manifests.
	KindBlender
	// KindKitti360 is a raw multi-camera rig log in KITTI-360 layout.
	KindKitti360
)

func (k Kind) String() string {
	switch k {
	case KindColmap:
		return "colmap"
	case KindBlender:
		return "blender"
	case KindKitti360:
		return "kitti360"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KittiOptions lifts the rig-log constants that the original pipeline
// baked into its reader. The defaults reproduce the reference drive.
type KittiOptions struct {
	// Sequence is the drive directory under data_poses.
	Sequence string

	// StartIndex and FrameCount bound the contiguous frame range.
	StartIndex int
	FrameCount int

	// TestEvery selects every n-th frame for evaluation.
	TestEvery int

	// Stereo chains the second forward camera through the rig offsets
	// when the calibration carries them.
	Stereo bool
}

// Options configures a load. The zero value plus ApplyDefaults is a
// usable configuration.
type Options struct {
	// ImagesDir is the image subfolder of a COLMAP dataset.
	ImagesDir string

	// Eval enables the train/test split; when off all cameras train.
	Eval bool

	// HoldoutStride is the modulo-holdout interval for sorted splits.
	HoldoutStride int

	// WhiteBackground composites alpha images onto white instead of black.
	WhiteBackground bool

	// Extension is appended to synthetic-manifest file path stubs.
	Extension string

	Kitti KittiOptions

	// Workers bounds the per-camera image decoding pool.
	Workers int

	// Seed seeds the synthetic point-cloud generator; 0 draws a
	// time-based seed.
	Seed int64

	// Images decodes camera images; nil uses the file-backed provider.
	Images ImageProvider

	// Progress, when set, is invoked after each camera is unified. It is
	// observability only and never part of the load contract.
	Progress func(done, total int)

	// Logger receives stage and progress logs; nil discards them.
	Logger *zap.SugaredLogger
}

// ApplyDefaults fills unset fields in place.
func (o *Options) ApplyDefaults() {
	if o.ImagesDir == "" {
		o.ImagesDir = "images"
	}
	if o.HoldoutStride <= 0 {
		o.HoldoutStride = scene.DefaultHoldoutStride
	}
	if o.Extension == "" {
		o.Extension = ".png"
	}
	if o.Kitti.Sequence == "" {
		o.Kitti.Sequence = "2013_05_28_drive_0000_sync"
	}
	if o.Kitti.StartIndex <= 0 {
		o.Kitti.StartIndex = 3463
	}
	if o.Kitti.FrameCount <= 0 {
		o.Kitti.FrameCount = 262
	}
	if o.Kitti.TestEvery <= 0 {
		o.Kitti.TestEvery = 2
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Images == nil {
		o.Images = FileImages{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

type readerFunc func(root string, opts *Options) (*scene.Descriptor, error)

var readers = map[Kind]readerFunc{
	KindColmap:   loadColmap,
	KindBlender:  loadBlender,
	KindKitti360: loadKitti360,
}

// Detect infers the dataset kind from the files present under root.
func Detect(root string) (Kind, error) {
	if _, err := os.Stat(filepath.Join(root, "sparse", "0")); err == nil {
		return KindColmap, nil
	}
	if _, err := os.Stat(filepath.Join(root, "transforms_train.json")); err == nil {
		return KindBlender, nil
	}
	if _, err := os.Stat(filepath.Join(root, "calibration", "perspective.txt")); err == nil {
		return KindKitti360, nil
	}
	return 0, &scene.DatasetFormatError{Path: root, Reason: "unrecognized dataset layout"}
}

// Load parses, unifies, splits, normalizes and assembles the dataset at
// root into an immutable scene descriptor. There is no partial success:
// the load either yields a complete descriptor or fails with the
// triggering path, the sole exception being an absent point cloud, which
// is a valid state.
func Load(root string, kind Kind, opts Options) (*scene.Descriptor, error) {
	opts.ApplyDefaults()
	reader, ok := readers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown dataset kind %v", kind)
	}
	opts.Logger.Infow("loading dataset", "root", root, "kind", kind.String(), "eval", opts.Eval)
	return reader(root, &opts)
}

// focalToFov converts a focal length to the angular extent of the
// frustum along an image dimension.
func focalToFov(focal, pixels float64) float64 {
	return 2 * math.Atan(pixels/(2*focal))
}

// fovToFocal is the inverse of focalToFov.
func fovToFocal(fov, pixels float64) float64 {
	return pixels / (2 * math.Tan(fov/2))
}

// unifyIndexed runs fn over [0, n) with a bounded worker pool and
// reports progress as items complete. Workers write to disjoint indices,
// so results reassemble in the original ordering key regardless of
// completion order. The first error wins and is returned after all
// workers drain.
func unifyIndexed(n, workers int, progress func(done, total int), fn func(i int) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	var (
		wg       sync.WaitGroup
		done     int64
		firstErr error
		errOnce  sync.Once
	)
	indices := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if err := fn(i); err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				if progress != nil {
					progress(int(atomic.AddInt64(&done, 1)), n)
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()
	return firstErr
}
