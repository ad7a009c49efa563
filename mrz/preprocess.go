package mrz

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"identity-verify/images"
	"identity-verify/models"
)

// matScope tracks Mats in LIFO order so a single defer releases every
// native buffer allocated during a preprocessing pass, in reverse
// allocation order.
type matScope struct {
	mats []*gocv.Mat
}

func (s *matScope) track(m gocv.Mat) gocv.Mat {
	s.mats = append(s.mats, &m)
	return m
}

func (s *matScope) Close() {
	for i := len(s.mats) - 1; i >= 0; i-- {
		s.mats[i].Close()
	}
}

// Preprocessor turns a raw capture into a crop more favorable to OCR.
// Implementations must be safe to call from a single goroutine at a
// time per session; the extractor never calls one concurrently with
// itself.
type Preprocessor interface {
	Preprocess(f models.Frame) (models.Frame, error)
}

// claheClipLimit and claheTile parameterize the local contrast
// enhancement step; if CLAHE construction panics on a build without
// support for it, EqualizeHist is used instead.
const claheClipLimit = 3.0

var claheTile = image.Pt(8, 8)

// bilateralDiameter/Sigma keep the edge-preserving smoothing step
// conservative so narrow MRZ glyph strokes survive it.
const (
	bilateralDiameter = 5
	bilateralSigma    = 50
)

// deskewAngleTolerance discards Hough line segments too steep to be a
// text baseline; rotateThreshold is the minimum median tilt worth
// correcting.
const (
	deskewAngleTolerance = 15.0
	rotateThreshold      = 0.5
)

const (
	adaptiveThresholdBlock = 11
	adaptiveThresholdC     = 2
)

// CVPreprocessor implements the grayscale -> contrast enhancement ->
// bilateral denoise -> deskew -> adaptive threshold -> morphological
// close pipeline via gocv.
type CVPreprocessor struct{}

func (CVPreprocessor) Preprocess(f models.Frame) (models.Frame, error) {
	src, err := gocv.ImageToMatRGBA(images.ToImage(f))
	if err != nil {
		return models.Frame{}, fmt.Errorf("frame to mat: %w", err)
	}
	defer src.Close()

	scope := &matScope{}
	defer scope.Close()

	gray := scope.track(gocv.NewMat())
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)

	enhanced := scope.track(gocv.NewMat())
	if !applyCLAHE(gray, &enhanced) {
		gocv.EqualizeHist(gray, &enhanced)
	}

	denoised := scope.track(gocv.NewMat())
	gocv.BilateralFilter(enhanced, &denoised, bilateralDiameter, bilateralSigma, bilateralSigma)

	deskewed, err := deskew(denoised, scope)
	if err != nil {
		return models.Frame{}, fmt.Errorf("deskew: %w", err)
	}

	thresh := scope.track(gocv.NewMat())
	gocv.AdaptiveThreshold(deskewed, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, adaptiveThresholdBlock, adaptiveThresholdC)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 1))
	defer kernel.Close()
	closed := scope.track(gocv.NewMat())
	gocv.MorphologyEx(thresh, &closed, gocv.MorphClose, kernel)

	img, err := closed.ToImage()
	if err != nil {
		return models.Frame{}, fmt.Errorf("mat to image: %w", err)
	}
	return images.FromImage(img), nil
}

// applyCLAHE runs local contrast enhancement, recovering from a panic
// on a gocv build lacking CLAHE support so the caller can fall back to
// global histogram equalization.
func applyCLAHE(src gocv.Mat, dst *gocv.Mat) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	clahe := gocv.NewCLAHEWithParams(claheClipLimit, claheTile)
	defer clahe.Close()
	clahe.Apply(src, dst)
	return true
}

// deskew estimates rotation from the median angle of near-horizontal
// Hough line segments and, if that tilt is worth correcting, rotates
// the source to level it, replicating border pixels.
func deskew(src gocv.Mat, scope *matScope) (gocv.Mat, error) {
	edges := scope.track(gocv.NewMat())
	gocv.Canny(src, &edges, 50, 150)

	lines := scope.track(gocv.NewMat())
	gocv.HoughLinesP(edges, &lines, 1, math.Pi/180, 80)
	if lines.Empty() || lines.Rows() == 0 {
		return src, nil
	}

	median := medianAngle(lines)
	if math.Abs(median) < rotateThreshold {
		return src, nil
	}

	center := image.Pt(src.Cols()/2, src.Rows()/2)
	rot := gocv.GetRotationMatrix2D(center, -median, 1.0)
	defer rot.Close()

	rotated := scope.track(gocv.NewMat())
	gocv.WarpAffineWithParams(src, &rotated, rot, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})
	return rotated, nil
}

// medianAngle returns the median angle, in degrees, of the
// near-horizontal (|angle|<deskewAngleTolerance) line segments in
// lines, or 0 if none qualify.
func medianAngle(lines gocv.Mat) float64 {
	var angles []float64
	for i := 0; i < lines.Rows(); i++ {
		x1 := float64(lines.GetVeciAt(i, 0)[0])
		y1 := float64(lines.GetVeciAt(i, 0)[1])
		x2 := float64(lines.GetVeciAt(i, 0)[2])
		y2 := float64(lines.GetVeciAt(i, 0)[3])
		dx := x2 - x1
		dy := y2 - y1
		if dx == 0 {
			continue
		}
		deg := atan2Deg(dy, dx)
		if deg > deskewAngleTolerance || deg < -deskewAngleTolerance {
			continue
		}
		angles = append(angles, deg)
	}
	if len(angles) == 0 {
		return 0
	}
	sort.Float64s(angles)
	mid := len(angles) / 2
	if len(angles)%2 == 0 {
		return (angles[mid-1] + angles[mid]) / 2
	}
	return angles[mid]
}

func atan2Deg(dy, dx float64) float64 {
	return math.Atan2(dy, dx) * 180.0 / math.Pi
}
