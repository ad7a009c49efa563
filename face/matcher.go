package face

import (
	"math"

	"identity-verify/apierrors"
	"identity-verify/models"
)

// matchThreshold is the Euclidean distance below which two descriptors
// are considered the same face.
const matchThreshold = 0.6

// similarityScale converts distance into a display-friendly similarity
// in [0, 1]; a distance at or beyond this scale maps to 0.
const similarityScale = 1.2

// Match compares a document portrait descriptor against a live capture
// descriptor.
func Match(portrait, live models.Descriptor) (models.MatchResult, error) {
	if !validDescriptor(portrait) || !validDescriptor(live) {
		return models.MatchResult{}, apierrors.New(apierrors.DescriptorInvalid, "descriptor is all-zero or wrong length")
	}

	distance := EuclideanDistance(portrait, live)
	similarity := 1 - distance/similarityScale
	if similarity < 0 {
		similarity = 0
	}

	return models.MatchResult{
		Similarity: similarity,
		Distance:   distance,
		IsMatch:    distance < matchThreshold,
	}, nil
}

// EuclideanDistance computes the raw Euclidean distance between two
// descriptors, independent of Match's display-similarity scaling.
func EuclideanDistance(a, b models.Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
