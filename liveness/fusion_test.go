package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"identity-verify/models"
)

func analysesFor(poses []models.Pose, yaw, quality, confidence float64, detected bool) []models.PoseAnalysis {
	out := make([]models.PoseAnalysis, len(poses))
	for i, p := range poses {
		out[i] = models.PoseAnalysis{
			Pose:         p,
			Detected:     detected,
			Confidence:   confidence,
			YawDeg:       yaw,
			QualityScore: quality,
		}
	}
	return out
}

func sameDescriptor(n int, v float32) []models.Descriptor {
	out := make([]models.Descriptor, n)
	for i := range out {
		var d models.Descriptor
		for j := range d {
			d[j] = v
		}
		out[i] = d
	}
	return out
}

func TestFuseDetectsStaticPictureAttack(t *testing.T) {
	// Every pose lands exactly on its target yaw, descriptors are
	// identical across poses, and the whole thing finished instantly:
	// all four indicators of a replayed static image.
	poses := Sequence
	analyses := make([]models.PoseAnalysis, len(poses))
	for i, p := range poses {
		analyses[i] = models.PoseAnalysis{
			Pose:         p,
			Detected:     true,
			Confidence:   1.0,
			YawDeg:       p.TargetYaw(),
			QualityScore: 0.9,
			TimestampMs:  int64(i) * 50, // poses arriving 50ms apart: instant, not a real challenge
		}
	}
	descriptors := sameDescriptor(len(poses), 0.5)

	result := Fuse(analyses, descriptors)

	assert.True(t, result.Details.StaticSuspected)
	assert.False(t, result.IsLive)
}

func TestFuseFailsWrongDirectionPose(t *testing.T) {
	// The LEFT pose is captured facing the wrong way (right instead
	// of left): its yaw deviates far enough from target that the
	// angle score drags the fused score below the live threshold.
	analyses := []models.PoseAnalysis{
		{Pose: models.PoseFront, Detected: true, Confidence: 0.9, YawDeg: 1, QualityScore: 0.8, TimestampMs: 0},
		{Pose: models.PoseLeft, Detected: true, Confidence: 0.9, YawDeg: 20, QualityScore: 0.8, TimestampMs: 2000}, // should be -20
		{Pose: models.PoseRight, Detected: true, Confidence: 0.9, YawDeg: 19, QualityScore: 0.8, TimestampMs: 4000},
	}
	descriptors := []models.Descriptor{
		constDescriptor(0.1), constDescriptor(-0.1), constDescriptor(0.3),
	}

	result := Fuse(analyses, descriptors)

	assert.False(t, result.Details.StaticSuspected)
	assert.Less(t, result.Score, liveThreshold)
	assert.False(t, result.IsLive)
}

func constDescriptor(v float32) models.Descriptor {
	var d models.Descriptor
	for i := range d {
		d[i] = v
	}
	return d
}
