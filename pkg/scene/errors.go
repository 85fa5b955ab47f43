package scene

import "fmt"

// DatasetFormatError reports a required dataset file that is missing or
// malformed with no remaining fallback. It aborts the load.
type DatasetFormatError struct {
	Path   string
	Reason string
}

func (e *DatasetFormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("dataset format error: %s", e.Reason)
	}
	return fmt.Sprintf("dataset format error: %s: %s", e.Path, e.Reason)
}

// UnsupportedCameraModelError reports an intrinsics model outside the two
// supported pinhole forms. Downstream geometry assumes rectified pinhole
// cameras, so this is fatal.
type UnsupportedCameraModelError struct {
	Model string
}

func (e *UnsupportedCameraModelError) Error() string {
	return fmt.Sprintf("unsupported camera model %q: only undistorted datasets (PINHOLE or SIMPLE_PINHOLE cameras) are supported", e.Model)
}

// ContainerParseError reports a corrupt persisted point-cloud container.
// Loaders recover from it locally by treating the point cloud as absent.
type ContainerParseError struct {
	Path string
	Err  error
}

func (e *ContainerParseError) Error() string {
	return fmt.Sprintf("point cloud container %s: %v", e.Path, e.Err)
}

func (e *ContainerParseError) Unwrap() error { return e.Err }

// ImageDecodeError reports a camera image that could not be decoded. A
// camera without its image is unusable, so this propagates as fatal.
type ImageDecodeError struct {
	Path string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decoding image %s: %v", e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }
