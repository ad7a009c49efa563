package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/models"
)

// descriptorAtDistance returns a descriptor whose Euclidean distance
// from an all-ones base descriptor is exactly dist, by offsetting a
// single dimension.
func descriptorAtDistance(dist float32) (models.Descriptor, models.Descriptor) {
	var a, b models.Descriptor
	for i := range a {
		a[i] = 1
		b[i] = 1
	}
	b[0] = a[0] + dist
	return a, b
}

func TestMatchFaceMismatch(t *testing.T) {
	a, b := descriptorAtDistance(0.72)

	result, err := Match(a, b)
	require.NoError(t, err)

	assert.False(t, result.IsMatch)
	assert.InDelta(t, 0.72, result.Distance, 1e-6)
	assert.InDelta(t, 0.40, result.Similarity, 0.01)
}

func TestMatchSameFace(t *testing.T) {
	var d models.Descriptor
	for i := range d {
		d[i] = 0.5
	}

	result, err := Match(d, d)
	require.NoError(t, err)

	assert.True(t, result.IsMatch)
	assert.Equal(t, 0.0, result.Distance)
	assert.Equal(t, 1.0, result.Similarity)
}

func TestMatchRejectsZeroDescriptor(t *testing.T) {
	var zero, other models.Descriptor
	other[0] = 0.5

	_, err := Match(zero, other)
	assert.Error(t, err)
}
