// Package phase implements the session state machine that sequences
// MRZ capture, portrait extraction, the liveness challenge, review and
// final submission.
package phase

import (
	"fmt"
	"sync"

	"identity-verify/apierrors"
	"identity-verify/models"
)

// StreamManager owns the lifecycle of whatever live camera stream a
// phase transition needs. The controller calls it whenever a phase
// boundary starts or stops needing the stream, so a backward
// transition always leaves the stream in a clean state.
type StreamManager interface {
	StartStream() error
	StopStream() error
}

// Controller drives one session's PhaseState through its transitions.
// It serializes every transition behind a mutex: the pipeline is
// single-threaded-cooperative per session, matching the rest of the
// core's concurrency model, so only one phase transition is ever in
// flight for a given session.
type Controller struct {
	mu      sync.Mutex
	state   models.PhaseState
	Streams StreamManager
}

// New returns a Controller for a fresh session, starting in AwaitMrz.
func New(sessionID string) *Controller {
	return &Controller{state: models.PhaseState{SessionID: sessionID, Phase: models.AwaitMrz}}
}

// Restore returns a Controller resuming from a previously persisted
// PhaseState, e.g. one loaded back from the session store after a
// process restart or controller-cache eviction.
func Restore(state models.PhaseState) *Controller {
	return &Controller{state: state}
}

// State returns a copy of the session's current phase state.
func (c *Controller) State() models.PhaseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmitMrz records a parsed MRZ record and advances AwaitMrz ->
// AwaitPortrait, gated on the record having a non-empty document
// number.
func (c *Controller) SubmitMrz(rec models.MrzRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != models.AwaitMrz {
		return apierrors.New(apierrors.MrzUnparseable, fmt.Sprintf("mrz submission not accepted in phase %d", c.state.Phase))
	}
	if rec.IDNumber == "" {
		return apierrors.New(apierrors.MrzUnparseable, "mrz record has no document number")
	}
	if err := c.advanceStream(models.AwaitMrz, models.AwaitPortrait); err != nil {
		return err
	}

	c.state.Mrz = &rec
	c.state.Phase = models.AwaitPortrait
	return nil
}

// SubmitPortrait records an extracted portrait and advances
// AwaitPortrait -> AwaitLiveness, gated on a valid 128-length,
// non-zero descriptor.
func (c *Controller) SubmitPortrait(p models.Portrait) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != models.AwaitPortrait {
		return apierrors.New(apierrors.DescriptorInvalid, fmt.Sprintf("portrait submission not accepted in phase %d", c.state.Phase))
	}
	if !hasSignal(p.Descriptor) {
		return apierrors.New(apierrors.DescriptorInvalid, "portrait descriptor is all-zero")
	}
	if err := c.advanceStream(models.AwaitPortrait, models.AwaitLiveness); err != nil {
		return err
	}

	c.state.Portrait = &p
	c.state.Phase = models.AwaitLiveness
	return nil
}

// SubmitLiveness records the liveness and match outcomes and advances
// AwaitLiveness -> Review, gated on a live, matching subject. A failed
// liveness or mismatched face is recorded but does not advance the
// phase: the caller stays in AwaitLiveness to retry the challenge.
func (c *Controller) SubmitLiveness(liveness models.LivenessResult, match models.MatchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != models.AwaitLiveness {
		return apierrors.New(apierrors.LivenessFailed, fmt.Sprintf("liveness submission not accepted in phase %d", c.state.Phase))
	}

	c.state.Liveness = &liveness
	c.state.Match = &match

	if !liveness.IsLive {
		kind := apierrors.LivenessFailed
		if liveness.Details.StaticSuspected {
			kind = apierrors.StaticAttackSuspected
		}
		return apierrors.New(kind, liveness.Reason)
	}
	if !match.IsMatch {
		return apierrors.New(apierrors.FaceMismatch, fmt.Sprintf("face distance %.3f exceeds threshold", match.Distance))
	}
	if err := c.advanceStream(models.AwaitLiveness, models.Review); err != nil {
		return err
	}

	c.state.Phase = models.Review
	return nil
}

// Submit finalizes Review -> Submitted.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != models.Review {
		return apierrors.New(apierrors.Transient, fmt.Sprintf("submit not accepted in phase %d", c.state.Phase))
	}

	c.state.Phase = models.Submitted
	return nil
}

// Back moves one phase backward, unconditionally. It wipes the result
// carried by the phase being left (and anything captured after it),
// stops the stream the forward phase had going, and restores the
// stream for the phase being returned to, so retrying never sees
// stale data or a dead camera feed from the abandoned attempt.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.Phase
	var target models.PhaseIndex
	switch current {
	case models.AwaitPortrait:
		target = models.AwaitMrz
	case models.AwaitLiveness:
		target = models.AwaitPortrait
	case models.Review:
		target = models.AwaitLiveness
	case models.Submitted:
		target = models.Review
	default:
		return apierrors.New(apierrors.Transient, "already at the first phase")
	}

	if err := c.advanceStream(current, target); err != nil {
		return err
	}

	switch current {
	case models.AwaitPortrait:
		c.state.Mrz = nil
		c.state.Phase = models.AwaitMrz
	case models.AwaitLiveness:
		c.state.Portrait = nil
		c.state.Liveness = nil
		c.state.Match = nil
		c.state.Phase = models.AwaitPortrait
	case models.Review:
		c.state.Liveness = nil
		c.state.Match = nil
		c.state.Phase = models.AwaitLiveness
	case models.Submitted:
		c.state.Phase = models.Review
	}
	return nil
}

// advanceStream stops the stream serving `from` (if that phase uses
// one) before starting the stream serving `to` (if it needs one),
// enforcing that stream N is fully stopped before stream N+1 is
// acquired. A nil Streams is a valid no-camera configuration (e.g.
// tests exercising the state machine alone).
func (c *Controller) advanceStream(from, to models.PhaseIndex) error {
	if c.Streams == nil {
		return nil
	}
	if phaseUsesStream(from) {
		if err := c.Streams.StopStream(); err != nil {
			return apierrors.Wrap(apierrors.Transient, "failed to stop stream", err)
		}
	}
	if phaseUsesStream(to) {
		if err := c.Streams.StartStream(); err != nil {
			return apierrors.Wrap(apierrors.Transient, "failed to start stream", err)
		}
	}
	return nil
}

// phaseUsesStream reports whether a phase captures live camera frames
// and therefore needs an active stream. Review and Submitted work from
// data already captured in earlier phases.
func phaseUsesStream(p models.PhaseIndex) bool {
	switch p {
	case models.AwaitMrz, models.AwaitPortrait, models.AwaitLiveness:
		return true
	default:
		return false
	}
}

func hasSignal(d models.Descriptor) bool {
	for _, v := range d {
		if v != 0 {
			return true
		}
	}
	return false
}
