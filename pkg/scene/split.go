package scene

import "sort"

// DefaultHoldoutStride is the default interval at which cameras are held
// out for evaluation.
const DefaultHoldoutStride = 8

// SortByName orders cameras lexically by image name in place. The sorted
// order is the ordering key for the modulo holdout, so two loads of the
// same dataset always produce the same split.
func SortByName(cameras []CameraRecord) {
	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].ImageName < cameras[j].ImageName
	})
}

// ModuloHoldout partitions cameras into train and test subsets: every
// camera whose index is divisible by stride becomes a test camera when
// eval is on. When eval is off all cameras are train and the test set is
// empty. The two outputs are disjoint, preserve input order, and together
// contain every input camera exactly once.
func ModuloHoldout(cameras []CameraRecord, stride int, eval bool) (train, test []CameraRecord) {
	if !eval {
		return cameras, nil
	}
	if stride <= 0 {
		stride = DefaultHoldoutStride
	}
	for i, c := range cameras {
		if i%stride == 0 {
			test = append(test, c)
		} else {
			train = append(train, c)
		}
	}
	return train, test
}

// IndexHoldout partitions cameras by a fixed modulo predicate over the
// enumeration index: index % every == 0 selects a test camera when eval
// is on. It is the split used by rig-log datasets, which have no stable
// image-name ordering.
func IndexHoldout(cameras []CameraRecord, every int, eval bool) (train, test []CameraRecord) {
	if !eval {
		return cameras, nil
	}
	if every <= 0 {
		every = 2
	}
	for i, c := range cameras {
		if i%every == 0 {
			test = append(test, c)
		} else {
			train = append(train, c)
		}
	}
	return train, test
}
