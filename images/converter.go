// Package images converts between the core's Frame bitmap and the
// standard image.Image types the OCR, face, and preprocessing
// collaborators operate on.
package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"identity-verify/models"

	xdraw "golang.org/x/image/draw"
)

// ToImage converts a Frame's RGBA pixels into a standard image.Image.
func ToImage(f models.Frame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Pix)
	return img
}

// FromImage copies img's pixels into a new Frame. The source image is
// never retained; only its pixel values are copied out.
func FromImage(img image.Image) models.Frame {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return models.Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    append([]byte(nil), rgba.Pix...),
	}
}

// DecodeBase64 decodes a base64-encoded JPEG or PNG (optionally
// prefixed with a "data:image/...;base64," URI scheme, as browsers
// send) into a Frame.
func DecodeBase64(s string) (models.Frame, error) {
	if idx := strings.Index(s, ","); strings.HasPrefix(s, "data:") && idx >= 0 {
		s = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return models.Frame{}, fmt.Errorf("decode base64 frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return models.Frame{}, fmt.Errorf("decode image frame: %w", err)
	}
	return FromImage(img), nil
}

// EncodePNGBase64 encodes a Frame as a base64 PNG string, optionally
// downscaled to fit within maxW x maxH (aspect-preserving; 0 disables
// downscaling on that axis).
func EncodePNGBase64(f models.Frame, maxW, maxH int) (string, error) {
	img := ToImage(f)
	if maxW > 0 || maxH > 0 {
		img = resizeToFit(img, maxW, maxH)
	}
	var buf bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeJPEGBase64 encodes a Frame as a base64 JPEG string at the given quality.
func EncodeJPEGBase64(f models.Frame, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ToImage(f), &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Downscale returns f resized to fit within a maxDim x maxDim box,
// preserving aspect ratio. Frames already within that box are
// returned unchanged.
func Downscale(f models.Frame, maxDim int) models.Frame {
	img := resizeToFit(ToImage(f), maxDim, maxDim)
	return FromImage(img)
}

// Crop returns the sub-rectangle of f bounded by rect, clamped to f's bounds.
func Crop(f models.Frame, rect image.Rectangle) models.Frame {
	bounds := image.Rect(0, 0, f.Width, f.Height)
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return models.Frame{}
	}
	src := ToImage(f)
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return FromImage(dst)
}

func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()
	if maxW <= 0 && maxH <= 0 {
		return src
	}
	if maxW <= 0 {
		scale := float64(maxH) / float64(bh)
		maxW = int(math.Round(float64(bw) * scale))
	}
	if maxH <= 0 {
		scale := float64(maxW) / float64(bw)
		maxH = int(math.Round(float64(bh) * scale))
	}
	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
