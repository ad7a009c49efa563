// Package attestation assembles a session's completed phase state
// into the final Attestation record.
package attestation

import (
	"fmt"
	"time"

	"identity-verify/apierrors"
	"identity-verify/images"
	"identity-verify/models"
)

// portraitThumbnailMaxDim bounds the lossless audit thumbnail's longer
// edge; portraitPreviewQuality is the JPEG quality of the compact
// preview shipped alongside it.
const (
	portraitThumbnailMaxDim = 256
	portraitPreviewQuality  = 70
)

// Assemble builds an Attestation from a PhaseState that has reached
// Review or Submitted. It fails if any of the three required results
// (mrz, portrait, liveness+match) are still missing.
func Assemble(state models.PhaseState, now time.Time) (models.Attestation, error) {
	if state.Mrz == nil {
		return models.Attestation{}, apierrors.New(apierrors.MrzUnparseable, "no mrz record in session")
	}
	if state.Portrait == nil {
		return models.Attestation{}, apierrors.New(apierrors.DescriptorInvalid, "no portrait in session")
	}
	if state.Liveness == nil || state.Match == nil {
		return models.Attestation{}, apierrors.New(apierrors.LivenessFailed, "no liveness result in session")
	}

	status := verificationStatus(*state.Liveness, *state.Match)

	portrait, err := portraitAssets(state.Portrait.Crop)
	if err != nil {
		return models.Attestation{}, apierrors.Wrap(apierrors.Transient, "encode portrait assets", err)
	}

	return models.Attestation{
		Identity:     *state.Mrz,
		DocumentType: state.Mrz.DocumentType,
		Timestamp:    now,
		Biometrics: models.Biometrics{
			MatchScore:         state.Match.Similarity,
			IsLive:             state.Liveness.IsLive,
			LivenessScore:      state.Liveness.Score,
			VerificationStatus: status,
		},
		Portrait: portrait,
	}, nil
}

// portraitAssets encodes the document portrait crop into a lossless,
// downscaled thumbnail and a compact JPEG preview for the attestation
// record.
func portraitAssets(crop models.Frame) (models.PortraitAssets, error) {
	thumbnail, err := images.EncodePNGBase64(crop, portraitThumbnailMaxDim, portraitThumbnailMaxDim)
	if err != nil {
		return models.PortraitAssets{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	preview, err := images.EncodeJPEGBase64(crop, portraitPreviewQuality)
	if err != nil {
		return models.PortraitAssets{}, fmt.Errorf("encode preview: %w", err)
	}
	return models.PortraitAssets{ThumbnailPNGBase64: thumbnail, PreviewJPEGBase64: preview}, nil
}

func verificationStatus(liveness models.LivenessResult, match models.MatchResult) models.VerificationStatus {
	switch {
	case liveness.Details.StaticSuspected:
		return models.StatusStaticAttack
	case !liveness.IsLive:
		return models.StatusLivenessFailed
	case !match.IsMatch:
		return models.StatusFaceMismatch
	default:
		return models.StatusVerified
	}
}

// Validate reports a non-nil error describing the first defect found
// in an attestation: a missing identity document number, then a
// missing verification status.
func Validate(a models.Attestation) error {
	if a.Identity.IDNumber == "" {
		return fmt.Errorf("attestation: missing identity document number")
	}
	if a.Biometrics.VerificationStatus == "" {
		return fmt.Errorf("attestation: missing verification status")
	}
	return nil
}
