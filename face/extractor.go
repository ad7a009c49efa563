package face

import (
	"image"

	"identity-verify/apierrors"
	"identity-verify/models"
)

// ExtractPortrait runs detection against a document photo frame and
// returns the single best portrait: the detected face crop plus its
// descriptor. When detection finds more than one face (a document
// photo with a second face visible behind it, say) the largest
// bounding box wins.
func ExtractPortrait(d Detector, f models.Frame) (models.Portrait, error) {
	faces, err := d.Detect(f)
	if err != nil {
		return models.Portrait{}, apierrors.Wrap(apierrors.NoFaceOnDocument, "face detection failed", err)
	}
	if len(faces) == 0 {
		return models.Portrait{}, apierrors.New(apierrors.NoFaceOnDocument, "no face detected on document photo")
	}

	best := faces[0]
	for _, ff := range faces[1:] {
		if areaOf(ff.Rect) > areaOf(best.Rect) {
			best = ff
		}
	}

	if !validDescriptor(best.Descriptor) {
		return models.Portrait{}, apierrors.New(apierrors.DescriptorInvalid, "face descriptor is all-zero")
	}

	return models.Portrait{
		Crop:       CropPortrait(f, best.Rect),
		Descriptor: best.Descriptor,
	}, nil
}

func areaOf(r image.Rectangle) int { return r.Dx() * r.Dy() }

func validDescriptor(d models.Descriptor) bool {
	for _, v := range d {
		if v != 0 {
			return true
		}
	}
	return false
}
