package mrz

import (
	"regexp"
	"strings"
)

var nonMrzChar = regexp.MustCompile(`[^A-Z0-9<]`)

// cleanLine uppercases s and strips every character outside A-Z, 0-9, '<'.
// It is idempotent: cleanLine(cleanLine(x)) == cleanLine(x).
func cleanLine(s string) string {
	return nonMrzChar.ReplaceAllString(strings.ToUpper(s), "")
}

// looksLikeMrzLine reports whether a cleaned line is plausibly part of
// an MRZ: either long enough on its own, or short but filler-dense.
func looksLikeMrzLine(s string) bool {
	if len(s) >= 25 {
		return true
	}
	fillers := strings.Count(s, "<")
	return fillers >= 2 && len(s) >= 10
}

// cleanMRZText implements the cleanMRZText algorithm of spec.md §4.3.
// It returns either 2-3 plausible MRZ lines (block=false) or a single
// collapsed, filler/uppercase-normalized block for width-based
// recovery (block=true).
func cleanMRZText(raw string) (lines []string, block bool) {
	rawLines := strings.FieldsFunc(raw, func(r rune) bool { return r == '\r' || r == '\n' })

	type candidate struct {
		text string
		idx  int
	}
	var candidates []candidate
	for i, l := range rawLines {
		cl := cleanLine(l)
		if looksLikeMrzLine(cl) {
			candidates = append(candidates, candidate{text: cl, idx: i})
		}
	}

	if len(candidates) >= 2 {
		sorted := append([]candidate(nil), candidates...)
		// stable selection of the longest 2 (or 3) by length, ties broken by original order
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				lj, li := len(sorted[j].text), len(sorted[i].text)
				if lj > li || (lj == li && sorted[j].idx < sorted[i].idx) {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		take := 2
		if len(sorted) >= 3 && len(sorted[2].text) >= 25 {
			take = 3
		}
		picked := sorted[:take]
		// restore original order
		for i := 0; i < len(picked); i++ {
			for j := i + 1; j < len(picked); j++ {
				if picked[j].idx < picked[i].idx {
					picked[i], picked[j] = picked[j], picked[i]
				}
			}
		}
		out := make([]string, len(picked))
		for i, p := range picked {
			out[i] = p.text
		}
		return out, false
	}

	return []string{cleanLine(raw)}, true
}

// normalizeDigits corrects OCR letter/digit confusion in a field that
// should be numeric: O->0, I or L->1. Any other character is left
// alone so callers can still detect a field that isn't numeric at all.
func normalizeDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 'O':
			c = '0'
		case 'I', 'L':
			c = '1'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// padLine right-pads s with '<' to width, or truncates it to width if
// it is already longer.
func padLine(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat("<", width-len(s))
}

// splitFixedWidth splits a collapsed block into n lines of the given
// width, padding the final line with '<' as needed.
func splitFixedWidth(block string, n, width int) []string {
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		start := i * width
		if start >= len(block) {
			lines[i] = strings.Repeat("<", width)
			continue
		}
		end := start + width
		if end > len(block) {
			end = len(block)
		}
		lines[i] = padLine(block[start:end], width)
	}
	return lines
}
