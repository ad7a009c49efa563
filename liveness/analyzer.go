// Package liveness runs the 3-pose capture challenge and fuses its
// per-pose geometry into a liveness verdict, guarding against a static
// photograph being presented instead of a live face.
package liveness

import (
	"math"

	"identity-verify/face"
	"identity-verify/models"
)

// fastCaptureMs is the mean inter-pose timestamp gap below which
// completion is suspiciously fast for a human following on-screen
// pose prompts.
const fastCaptureMs = 800

// AnalyzePose runs face detection against a single captured frame and
// turns the result into a PoseAnalysis, estimating yaw from how far
// off-center the detected face's bounding box sits (go-face's public
// API exposes a bounding box and descriptor, not full landmarks, so
// yaw is approximated geometrically rather than from eye/nose points).
func AnalyzePose(detector face.Detector, f models.Frame, pose models.Pose, timestampMs int64) (models.PoseAnalysis, models.Descriptor, error) {
	faces, err := detector.Detect(f)
	if err != nil || len(faces) == 0 {
		return models.PoseAnalysis{
			Pose:          pose,
			Detected:      false,
			TimestampMs:   timestampMs,
			FailureReason: "no face detected",
		}, models.Descriptor{}, nil
	}

	best := faces[0]
	for _, ff := range faces[1:] {
		if (ff.Rect.Dx() * ff.Rect.Dy()) > (best.Rect.Dx() * best.Rect.Dy()) {
			best = ff
		}
	}

	frameCenterX := float64(f.Width) / 2
	faceCenterX := float64(best.Rect.Min.X+best.Rect.Max.X) / 2
	// A face shifted toward the right half of the frame is turned
	// toward the viewer's left, i.e. a negative yaw in our convention.
	offsetFraction := (faceCenterX - frameCenterX) / frameCenterX
	yaw := offsetFraction * -45 // heuristic field-of-view scale

	faceArea := float64(best.Rect.Dx() * best.Rect.Dy())
	frameArea := float64(f.Width * f.Height)
	sizeFraction := faceArea / frameArea
	quality := clamp01(sizeFraction * 6) // a well-framed face fills ~1/6 of the capture

	return models.PoseAnalysis{
		Pose:          pose,
		Detected:      true,
		Confidence:    1.0,
		YawDeg:        yaw,
		EyeDistancePx: float64(best.Rect.Dx()) / 2,
		QualityScore:  quality,
		TimestampMs:   timestampMs,
	}, best.Descriptor, nil
}

// angleScore rates how close each detected pose's observed yaw is to
// its target, averaged over detected poses only.
//
// The FRONT (center) target scores purely on |yaw|: 10/15/20/30 degree
// bands step down from 1.0 to 0. LEFT/RIGHT (side) targets additionally
// require the observed yaw to share the target's sign — a
// direction-mismatched pose scores a flat 0.1 regardless of magnitude —
// and get a small bonus for a confidently large turn.
func angleScore(analyses []models.PoseAnalysis) float64 {
	var sum float64
	count := 0
	for _, a := range analyses {
		if !a.Detected {
			continue
		}
		sum += poseAngleScore(a)
		count++
	}
	if count == 0 {
		return 0
	}
	return clamp01(sum / float64(count))
}

func poseAngleScore(a models.PoseAnalysis) float64 {
	target := a.Pose.TargetYaw()
	diff := math.Abs(a.YawDeg - target)

	if target == 0 {
		switch {
		case diff <= 10:
			return 1.0
		case diff <= 15:
			return 0.8
		case diff <= 20:
			return 0.5
		case diff <= 30:
			return 0.2
		default:
			return 0
		}
	}

	sameDirection := (target > 0) == (a.YawDeg > 0)
	if !sameDirection {
		return 0.1
	}

	var score float64
	switch {
	case diff <= 10:
		score = 1.0
	case diff <= 15:
		score = 0.8
	case diff <= 25:
		score = 0.6
	case diff <= 35:
		score = 0.3
	default:
		score = 0.1
	}
	if math.Abs(a.YawDeg) >= 15 {
		score = math.Min(1.0, score*1.1)
	}
	return score
}

// consistency measures how stable cross-pose face descriptors are: the
// same live subject should produce closely related embeddings across
// the three poses. It averages the pairwise Euclidean distances
// between every valid pair of descriptors and converts that average
// distance into a [0,1] score, 1 being identical.
func consistency(descriptors []models.Descriptor) float64 {
	valid := make([]models.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if hasSignal(d) {
			valid = append(valid, d)
		}
	}
	if len(valid) < 2 {
		return 0
	}

	var distSum float64
	pairs := 0
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			distSum += face.EuclideanDistance(valid[i], valid[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	avgDistance := distSum / float64(pairs)
	return 1 - math.Min(avgDistance, 1)
}

func hasSignal(d models.Descriptor) bool {
	for _, v := range d {
		if v != 0 {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
