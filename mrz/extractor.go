// Package mrz extracts and parses the machine-readable zone of an
// identity document from a captured frame.
package mrz

import (
	"fmt"
	"time"

	"identity-verify/models"
)

// strategyAcceptLen is the character count at which a single strategy's
// OCR output is trusted outright, without trying the others.
const strategyAcceptLen = 60

// strategyMinLen is the minimum character count any strategy's output
// must reach to be considered at all.
const strategyMinLen = 30

// Extractor runs the multi-strategy OCR pipeline against a captured
// frame and parses the result into an MrzRecord.
type Extractor struct {
	Recognizer   Recognizer
	Preprocessor Preprocessor
	Now          func() time.Time
}

// NewExtractor builds an Extractor backed by Tesseract and gocv.
func NewExtractor() *Extractor {
	return &Extractor{
		Recognizer:   NewTesseractRecognizer(300),
		Preprocessor: CVPreprocessor{},
		Now:          time.Now,
	}
}

// Extract implements the three-strategy capture of spec.md §4.3: full
// frame, bottom-40% crop, and a preprocessed version of that crop. Each
// strategy is run through whitelist-then-open OCR passes; the first
// strategy whose cleaned text reaches strategyAcceptLen wins outright,
// otherwise the longest strategy output of at least strategyMinLen is
// used. Below that, the capture is unreadable.
func (e *Extractor) Extract(f models.Frame) (models.MrzRecord, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	bottom := bottomCrop(f, 0.4)

	type attempt struct {
		text string
	}
	var attempts []attempt

	strategies := []models.Frame{f, bottom}
	if e.Preprocessor != nil {
		if pre, err := e.Preprocessor.Preprocess(bottom); err == nil {
			strategies = append(strategies, pre)
		}
	}

	for _, frame := range strategies {
		text, err := e.recognize(frame)
		if err != nil {
			continue
		}
		attempts = append(attempts, attempt{text: text})
		if len(cleanLine(text)) >= strategyAcceptLen {
			break
		}
	}

	best := ""
	for _, a := range attempts {
		if len(cleanLine(a.text)) > len(cleanLine(best)) {
			best = a.text
		}
	}

	if len(cleanLine(best)) < strategyMinLen {
		return models.MrzRecord{}, fmt.Errorf("mrz: unreadable capture")
	}

	lines, _ := cleanMRZText(best)
	canonical, err := canonicalizeLines(lines)
	if err != nil {
		return models.MrzRecord{}, err
	}

	rec, err := ParseLines(canonical, now())
	if err != nil {
		return models.MrzRecord{}, err
	}
	rec.Quality = scoreQuality(rec, len(cleanLine(best)))
	return rec, nil
}

// recognize runs the whitelist pass first, then falls back to an open
// vocabulary pass only if the whitelist pass's cleaned output is still
// short of strategyAcceptLen.
func (e *Extractor) recognize(f models.Frame) (string, error) {
	text, err := e.Recognizer.Recognize(f, mrzWhitelist)
	if err == nil && len(cleanLine(text)) >= strategyAcceptLen {
		return text, nil
	}
	return e.Recognizer.Recognize(f, "")
}

// canonicalizeLines maps cleanMRZText's output to one of the three
// canonical ICAO line shapes (3x30, 2x36, 2x44). Separate lines are
// mapped by line count and longest-line width (3 lines of at most 30 ->
// 3x30, otherwise the first two lines as 2x44 if wider than 36, else
// 2x36); a collapsed block is split into the shape whose total width
// is closest to the block's length.
func canonicalizeLines(lines []string) ([]string, error) {
	if len(lines) >= 2 {
		width := maxLen(lines)
		switch {
		case len(lines) >= 3 && width <= 30:
			return []string{padLine(lines[0], 30), padLine(lines[1], 30), padLine(lines[2], 30)}, nil
		case width > 36:
			return []string{padLine(lines[0], 44), padLine(lines[1], 44)}, nil
		default:
			return []string{padLine(lines[0], 36), padLine(lines[1], 36)}, nil
		}
	}

	block := lines[0]
	candidates := []struct {
		n, width int
	}{{3, 30}, {2, 44}, {2, 36}}
	var best []string
	bestDiff := -1
	for _, c := range candidates {
		diff := abs(len(block) - c.n*c.width)
		if bestDiff == -1 || diff < bestDiff {
			bestDiff = diff
			best = splitFixedWidth(block, c.n, c.width)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("mrz: could not recover line shape")
	}
	return best, nil
}

func maxLen(lines []string) int {
	m := 0
	for _, l := range lines {
		if len(l) > m {
			m = len(l)
		}
	}
	return m
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// bottomCrop returns the bottom fraction of f, where the machine-readable
// zone sits on a passport or ID card page.
func bottomCrop(f models.Frame, fraction float64) models.Frame {
	cutRow := int(float64(f.Height) * (1 - fraction))
	if cutRow < 0 || cutRow >= f.Height {
		return f
	}
	stride := f.Width * 4
	start := cutRow * stride
	return models.Frame{
		Width:  f.Width,
		Height: f.Height - cutRow,
		Pix:    append([]byte(nil), f.Pix[start:]...),
	}
}
