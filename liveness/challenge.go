package liveness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"identity-verify/face"
	"identity-verify/models"
)

// FrameSource supplies frames on demand during a pose capture, e.g.
// from a live camera feed.
type FrameSource interface {
	NextFrame(ctx context.Context) (models.Frame, error)
}

// Sequence is the fixed pose order of the challenge.
var Sequence = []models.Pose{models.PoseFront, models.PoseLeft, models.PoseRight}

// ChallengeResult pairs the fused liveness verdict with a descriptor
// suitable for matching against the enrolled portrait, taken from the
// first captured pose that yielded a usable face descriptor.
type ChallengeResult struct {
	models.LivenessResult
	LiveDescriptor models.Descriptor
}

// Challenge runs the 3-pose liveness capture as an explicit state
// machine: one Start call owns the session's detector and frame
// source until every pose has been captured or the context is
// cancelled. The running flag rejects a second concurrent Start on
// the same Challenge, mirroring the single-threaded-cooperative model
// the rest of the pipeline uses per session.
type Challenge struct {
	Detector face.Detector
	Now      func() time.Time

	running atomic.Bool
}

// Start captures all three poses from source and returns a channel
// that receives exactly one ChallengeResult before closing. It returns
// an error immediately, without touching the channel, if a capture is
// already in progress.
func (c *Challenge) Start(ctx context.Context, source FrameSource) (<-chan ChallengeResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("liveness: challenge already in progress")
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	out := make(chan ChallengeResult, 1)
	go func() {
		var result ChallengeResult
		// Deferred calls run last-in first-out: the running flag is
		// cleared before the result is delivered, so a caller that has
		// received the result never sees Running() report true.
		defer func() {
			out <- result
			close(out)
		}()
		defer c.running.Store(false)

		start := now()
		analyses := make([]models.PoseAnalysis, 0, len(Sequence))
		descriptors := make([]models.Descriptor, 0, len(Sequence))

		for _, pose := range Sequence {
			frame, err := source.NextFrame(ctx)
			if err != nil {
				analyses = append(analyses, models.PoseAnalysis{
					Pose:          pose,
					Detected:      false,
					TimestampMs:   now().Sub(start).Milliseconds(),
					FailureReason: err.Error(),
				})
				descriptors = append(descriptors, models.Descriptor{})
				continue
			}

			analysis, descriptor, err := AnalyzePose(c.Detector, frame, pose, now().Sub(start).Milliseconds())
			if err != nil {
				analysis = models.PoseAnalysis{
					Pose:          pose,
					Detected:      false,
					TimestampMs:   now().Sub(start).Milliseconds(),
					FailureReason: err.Error(),
				}
			}
			analyses = append(analyses, analysis)
			descriptors = append(descriptors, descriptor)

			select {
			case <-ctx.Done():
				result = ChallengeResult{LivenessResult: Fuse(analyses, descriptors), LiveDescriptor: firstWithSignal(descriptors)}
				return
			default:
			}
		}

		result = ChallengeResult{LivenessResult: Fuse(analyses, descriptors), LiveDescriptor: firstWithSignal(descriptors)}
	}()

	return out, nil
}

// Running reports whether a capture is currently in progress.
func (c *Challenge) Running() bool {
	return c.running.Load()
}

func firstWithSignal(descriptors []models.Descriptor) models.Descriptor {
	for _, d := range descriptors {
		for _, v := range d {
			if v != 0 {
				return d
			}
		}
	}
	return models.Descriptor{}
}
