package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifacts(n int) []Artifact {
	out := make([]Artifact, n)
	for i := range out {
		out[i] = Artifact{ID: fmt.Sprintf("a-%d", i), Index: i}
	}
	return out
}

func TestPartition_CoversEveryArtifactOnceInOrder(t *testing.T) {
	for _, tc := range []struct {
		n, size int
		sizes   []int
	}{
		{n: 3, size: 2, sizes: []int{2, 1}},
		{n: 10, size: 5, sizes: []int{5, 5}},
		{n: 7, size: 3, sizes: []int{3, 3, 1}},
		{n: 2, size: 100, sizes: []int{2}},
		{n: 1, size: 1, sizes: []int{1}},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.n, tc.size), func(t *testing.T) {
			in := artifacts(tc.n)
			batches := Partition(in, tc.size)

			require.Len(t, batches, (tc.n+tc.size-1)/tc.size)

			var flat []Artifact
			for i, b := range batches {
				assert.Equal(t, i+1, b.Number)
				assert.Equal(t, tc.sizes[i], b.Len())
				flat = append(flat, b.Artifacts...)
			}
			assert.Equal(t, in, flat)
		})
	}
}

func TestPartition_Empty(t *testing.T) {
	assert.Nil(t, Partition(nil, 10))
	assert.Nil(t, Partition([]Artifact{}, 10))
}

func TestPartition_NonPositiveSize(t *testing.T) {
	batches := Partition(artifacts(3), 0)
	assert.Len(t, batches, 3)
}

func TestPartition_BatchesDoNotShareCapacity(t *testing.T) {
	batches := Partition(artifacts(4), 2)
	first := batches[0].Artifacts
	first = append(first, Artifact{ID: "extra"})

	assert.Equal(t, "a-2", batches[1].Artifacts[0].ID)
	assert.Len(t, first, 3)
}
