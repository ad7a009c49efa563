package liveness

import (
	"math"

	"identity-verify/models"
)

// Static-attack indicator weights; their sum (5.5) is the denominator
// against which the combined weight of triggered indicators is judged.
const (
	weightTooConsistent    = 2.0
	weightPerfectAnglesHi  = 1.5 // >=3 poses within perfectAngleToleranceDeg of target
	weightPerfectAnglesMid = 1.0 // >=2 poses within perfectAngleToleranceDeg of target
	weightTooFast          = 1.0
	weightNoVariance       = 1.0
	staticWeightSum        = weightTooConsistent + weightPerfectAnglesHi + weightTooFast + weightNoVariance

	tooConsistentThreshold      = 0.97
	perfectAngleToleranceDeg    = 5.0
	noVarianceThreshold         = 0.002
	liveThreshold               = 0.7
)

// detectStaticAttack flags a capture as a likely static-picture replay
// when enough of four independent "too perfect" indicators fire:
// consistency implausibly high, yaw angles implausibly exact, the
// challenge's poses arriving faster than a human reacting to on-screen
// prompts could, or quality scores showing no frame-to-frame variance.
func detectStaticAttack(analyses []models.PoseAnalysis, consist float64) bool {
	var weight float64

	if consist > tooConsistentThreshold {
		weight += weightTooConsistent
	}

	switch close := countWithinTarget(analyses, perfectAngleToleranceDeg); {
	case close >= 3:
		weight += weightPerfectAnglesHi
	case close >= 2:
		weight += weightPerfectAnglesMid
	}

	if gap, ok := meanInterPoseGapMs(analyses); ok && gap < fastCaptureMs {
		weight += weightTooFast
	}

	if qualityVariance(analyses) < noVarianceThreshold {
		weight += weightNoVariance
	}

	return weight/staticWeightSum > 0.5
}

// countWithinTarget counts detected poses whose yaw lands within
// toleranceDeg of their pose's target yaw.
func countWithinTarget(analyses []models.PoseAnalysis, toleranceDeg float64) int {
	count := 0
	for _, a := range analyses {
		if !a.Detected {
			continue
		}
		if math.Abs(a.YawDeg-a.Pose.TargetYaw()) < toleranceDeg {
			count++
		}
	}
	return count
}

// meanInterPoseGapMs averages the timestamp gaps between consecutive
// poses. It reports ok=false when fewer than two poses are present, so
// the tooFast indicator never fires on insufficient data.
func meanInterPoseGapMs(analyses []models.PoseAnalysis) (mean float64, ok bool) {
	if len(analyses) < 2 {
		return 0, false
	}
	var sum float64
	for i := 1; i < len(analyses); i++ {
		gap := float64(analyses[i].TimestampMs - analyses[i-1].TimestampMs)
		if gap < 0 {
			gap = 0
		}
		sum += gap
	}
	return sum / float64(len(analyses)-1), true
}

func qualityVariance(analyses []models.PoseAnalysis) float64 {
	if len(analyses) < 2 {
		return 1 // insufficient data never counts as "no variance"
	}
	var mean float64
	for _, a := range analyses {
		mean += a.QualityScore
	}
	mean /= float64(len(analyses))

	var variance float64
	for _, a := range analyses {
		d := a.QualityScore - mean
		variance += d * d
	}
	return variance / float64(len(analyses))
}

// Fuse combines per-pose analyses and cross-pose descriptors into a
// final liveness verdict, per the weighted-score formula:
// 0.3*detection_rate + 0.2*mean_quality + 0.1*mean_confidence +
// 0.2*consistency + 0.2*angle_score, halved whenever a static attack
// is suspected.
func Fuse(analyses []models.PoseAnalysis, descriptors []models.Descriptor) models.LivenessResult {
	detected := 0
	var qualitySum, confidenceSum float64
	for _, a := range analyses {
		if a.Detected {
			detected++
			qualitySum += a.QualityScore
			confidenceSum += a.Confidence
		}
	}

	detectionRate := 0.0
	meanQuality := 0.0
	meanConfidence := 0.0
	if len(analyses) > 0 {
		detectionRate = float64(detected) / float64(len(analyses))
	}
	if detected > 0 {
		meanQuality = qualitySum / float64(detected)
		meanConfidence = confidenceSum / float64(detected)
	}

	consist := consistency(descriptors)
	angle := angleScore(analyses)

	score := 0.3*detectionRate + 0.2*meanQuality + 0.1*meanConfidence + 0.2*consist + 0.2*angle

	staticSuspected := detectStaticAttack(analyses, consist)
	if staticSuspected {
		score /= 2
	}

	isLive := score >= liveThreshold && !staticSuspected

	reason := ""
	switch {
	case staticSuspected:
		reason = "static image attack suspected"
	case !isLive:
		reason = "liveness score below threshold"
	}

	angleResults := make([]float64, len(analyses))
	for i, a := range analyses {
		angleResults[i] = a.YawDeg - a.Pose.TargetYaw()
	}

	return models.LivenessResult{
		IsLive: isLive,
		Score:  clamp01(score),
		Reason: reason,
		Details: models.LivenessDetails{
			PoseAnalyses:    analyses,
			Consistency:     consist,
			AngleResults:    angleResults,
			StaticSuspected: staticSuspected,
		},
	}
}
