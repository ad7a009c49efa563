package attestation

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/images"
	"identity-verify/models"
)

func solidPortrait(w, h int) models.Portrait {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	var d models.Descriptor
	d[0] = 1
	return models.Portrait{Crop: images.FromImage(img), Descriptor: d}
}

func TestAssembleEncodesPortraitAssets(t *testing.T) {
	rec := models.MrzRecord{IDNumber: "D23145890", DocumentType: models.TD3}
	portrait := solidPortrait(300, 300)
	liveness := models.LivenessResult{IsLive: true, Score: 0.9}
	match := models.MatchResult{IsMatch: true, Similarity: 0.95}

	state := models.PhaseState{
		Mrz:      &rec,
		Portrait: &portrait,
		Liveness: &liveness,
		Match:    &match,
	}

	att, err := Assemble(state, time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, models.StatusVerified, att.Biometrics.VerificationStatus)
	assert.NotEmpty(t, att.Portrait.ThumbnailPNGBase64)
	assert.NotEmpty(t, att.Portrait.PreviewJPEGBase64)
}

func TestAssembleFailsWithoutPortrait(t *testing.T) {
	rec := models.MrzRecord{IDNumber: "D23145890"}
	liveness := models.LivenessResult{IsLive: true}
	match := models.MatchResult{IsMatch: true}

	state := models.PhaseState{Mrz: &rec, Liveness: &liveness, Match: &match}

	_, err := Assemble(state, time.Now())
	assert.Error(t, err)
}
