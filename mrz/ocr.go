package mrz

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"identity-verify/models"
)

// mrzWhitelist restricts the first OCR pass to the character set ICAO
// 9303 machine-readable zones are printed in.
const mrzWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789<"

// Recognizer extracts raw text from an image. It is the seam that lets
// the extractor run against a fake in tests without a Tesseract
// install.
type Recognizer interface {
	Recognize(f models.Frame, whitelist string) (string, error)
}

// TesseractRecognizer drives Tesseract through gosseract.
type TesseractRecognizer struct {
	DPI int
}

// NewTesseractRecognizer returns a Recognizer configured for dense,
// single-block MRZ text at the given scan DPI (0 uses Tesseract's default).
func NewTesseractRecognizer(dpi int) *TesseractRecognizer {
	return &TesseractRecognizer{DPI: dpi}
}

func (t *TesseractRecognizer) Recognize(f models.Frame, whitelist string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if t.DPI > 0 {
		if err := client.SetVariable("user_defined_dpi", fmt.Sprintf("%d", t.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("set preserve_interword_spaces: %w", err)
	}

	png, err := encodeFramePNG(f)
	if err != nil {
		return "", fmt.Errorf("encode frame for ocr: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("load frame into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return text, nil
}
