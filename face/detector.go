// Package face detects and matches faces via 128-dimensional
// descriptors extracted from document portraits and live capture
// frames.
package face

import (
	"fmt"
	"image"
	"math"

	"github.com/Kagami/go-face"

	"identity-verify/images"
	"identity-verify/models"
)

// portraitPadding is added on every side of a detected face's bounding
// box before cropping, so the stored portrait includes a little
// context rather than a tight face-only box.
const portraitPadding = 20

// fastDetectMaxDim is the working size the fast (HOG-based) fallback
// recognizer runs at. It trades accuracy for speed by detecting on a
// downscaled frame rather than the accurate tier's full resolution.
const fastDetectMaxDim = 512

// Detector finds faces in a frame and extracts their descriptors. It
// is the seam that lets callers run against a fake in tests without a
// dlib model directory on disk.
type Detector interface {
	Detect(f models.Frame) ([]DetectedFace, error)
}

// DetectedFace pairs a face's bounding box with its descriptor.
type DetectedFace struct {
	Rect       image.Rectangle
	Descriptor models.Descriptor
}

// GoFaceDetector wraps go-face's two recognizers: an accurate CNN-based
// one tried first, falling back to a faster HOG-based one when the CNN
// model finds nothing (e.g. on a low-resolution capture).
type GoFaceDetector struct {
	accurate *face.Recognizer
	fast     *face.Recognizer
}

// NewGoFaceDetector loads both recognizers from modelDir (the
// directory containing go-face's shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and
// mmod_human_face_detector.dat files).
func NewGoFaceDetector(modelDir string) (*GoFaceDetector, error) {
	accurate, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load accurate face recognizer: %w", err)
	}
	fast, err := face.NewRecognizer(modelDir)
	if err != nil {
		accurate.Close()
		return nil, fmt.Errorf("load fast face recognizer: %w", err)
	}
	return &GoFaceDetector{accurate: accurate, fast: fast}, nil
}

// Close releases both recognizers' native resources.
func (d *GoFaceDetector) Close() {
	d.accurate.Close()
	d.fast.Close()
}

func (d *GoFaceDetector) Detect(f models.Frame) ([]DetectedFace, error) {
	jpg, err := encodeFrameJPEG(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame for detection: %w", err)
	}

	faces, err := d.accurate.RecognizeCNN(jpg)
	if err == nil && len(faces) > 0 {
		return toDetectedFaces(faces), nil
	}

	// The CNN tier found nothing: fall back to the HOG-based recognizer
	// running at a smaller working size, trading accuracy for speed.
	scale := fastDetectScale(f)
	fastFrame := f
	if scale < 1.0 {
		fastFrame = images.Downscale(f, fastDetectMaxDim)
	}
	fastJPG, err := encodeFrameJPEG(fastFrame)
	if err != nil {
		return nil, fmt.Errorf("encode frame for fast detection: %w", err)
	}
	faces, err = d.fast.Recognize(fastJPG)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	return rescaleRects(toDetectedFaces(faces), 1/scale), nil
}

func toDetectedFaces(faces []face.Face) []DetectedFace {
	out := make([]DetectedFace, 0, len(faces))
	for _, ff := range faces {
		out = append(out, DetectedFace{
			Rect:       ff.Rectangle,
			Descriptor: models.Descriptor(ff.Descriptor),
		})
	}
	return out
}

// fastDetectScale returns the factor Downscale would apply to fit f
// within fastDetectMaxDim, or 1.0 if f is already within that box.
func fastDetectScale(f models.Frame) float64 {
	scale := math.Min(float64(fastDetectMaxDim)/float64(f.Width), float64(fastDetectMaxDim)/float64(f.Height))
	if scale >= 1.0 {
		return 1.0
	}
	return scale
}

// rescaleRects maps bounding boxes detected on a downscaled frame back
// into the original frame's coordinate space.
func rescaleRects(faces []DetectedFace, factor float64) []DetectedFace {
	if factor == 1.0 {
		return faces
	}
	for i, f := range faces {
		faces[i].Rect = image.Rect(
			int(float64(f.Rect.Min.X)*factor),
			int(float64(f.Rect.Min.Y)*factor),
			int(float64(f.Rect.Max.X)*factor),
			int(float64(f.Rect.Max.Y)*factor),
		)
	}
	return faces
}

// CropPortrait crops f to the padded bounding box of rect, clamped to
// f's bounds.
func CropPortrait(f models.Frame, rect image.Rectangle) models.Frame {
	padded := image.Rect(rect.Min.X-portraitPadding, rect.Min.Y-portraitPadding, rect.Max.X+portraitPadding, rect.Max.Y+portraitPadding)
	return images.Crop(f, padded)
}
