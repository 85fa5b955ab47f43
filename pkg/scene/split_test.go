package scene

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedCameras(n int) []CameraRecord {
	cams := make([]CameraRecord, n)
	for i := range cams {
		cams[i] = CameraRecord{ID: i, ImageName: fmt.Sprintf("cam_%03d", i)}
	}
	return cams
}

// assertPartition checks that train and test are disjoint and together
// contain every input camera exactly once.
func assertPartition(t *testing.T, all, train, test []CameraRecord) {
	t.Helper()
	require.Equal(t, len(all), len(train)+len(test))
	seen := make(map[int]int)
	for _, c := range train {
		seen[c.ID]++
	}
	for _, c := range test {
		seen[c.ID]++
	}
	for _, c := range all {
		assert.Equal(t, 1, seen[c.ID], "camera %d must appear exactly once", c.ID)
	}
}

func TestModuloHoldout(t *testing.T) {
	t.Run("eval off keeps everything in train", func(t *testing.T) {
		cams := namedCameras(10)
		train, test := ModuloHoldout(cams, 8, false)
		assert.Len(t, train, 10)
		assert.Empty(t, test)
	})

	t.Run("stride selects ceil(n/k) test cameras", func(t *testing.T) {
		for _, tc := range []struct{ n, k, wantTest int }{
			{16, 8, 2},
			{17, 8, 3},
			{8, 8, 1},
			{7, 8, 1},
			{24, 8, 3},
			{10, 3, 4},
		} {
			cams := namedCameras(tc.n)
			train, test := ModuloHoldout(cams, tc.k, true)
			assert.Len(t, test, tc.wantTest, "n=%d k=%d", tc.n, tc.k)
			assertPartition(t, cams, train, test)
		}
	})

	t.Run("test cameras are the stride multiples", func(t *testing.T) {
		cams := namedCameras(16)
		_, test := ModuloHoldout(cams, 8, true)
		require.Len(t, test, 2)
		assert.Equal(t, 0, test[0].ID)
		assert.Equal(t, 8, test[1].ID)
	})

	t.Run("order preserved", func(t *testing.T) {
		cams := namedCameras(20)
		train, _ := ModuloHoldout(cams, 8, true)
		for i := 1; i < len(train); i++ {
			assert.Less(t, train[i-1].ID, train[i].ID)
		}
	})
}

func TestIndexHoldout(t *testing.T) {
	t.Run("eval off", func(t *testing.T) {
		cams := namedCameras(9)
		train, test := IndexHoldout(cams, 3, false)
		assert.Len(t, train, 9)
		assert.Empty(t, test)
	})

	t.Run("every third", func(t *testing.T) {
		cams := namedCameras(9)
		train, test := IndexHoldout(cams, 3, true)
		assert.Len(t, test, 3)
		assertPartition(t, cams, train, test)
		assert.Equal(t, []int{0, 3, 6}, []int{test[0].ID, test[1].ID, test[2].ID})
	})
}

func TestSortByName(t *testing.T) {
	cams := []CameraRecord{
		{ID: 0, ImageName: "r_2"},
		{ID: 1, ImageName: "r_0"},
		{ID: 2, ImageName: "r_1"},
	}
	SortByName(cams)
	assert.Equal(t, "r_0", cams[0].ImageName)
	assert.Equal(t, "r_1", cams[1].ImageName)
	assert.Equal(t, "r_2", cams[2].ImageName)
}
