package mrz

import (
	"strings"

	"identity-verify/models"
)

var expectedTextLength = map[models.DocumentType]int{
	models.TD1: 90,
	models.TD2: 72,
	models.TD3: 88,
}

// scoreQuality implements the MrzQuality algorithm of spec.md §4.3.
func scoreQuality(rec models.MrzRecord, rawTextLen int) models.MrzQuality {
	var issues []string
	score := 0

	// Length match.
	expected := expectedTextLength[rec.DocumentType]
	diff := rawTextLen - expected
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		score += 20
	case diff <= 5:
		score += 15
	case diff <= 10:
		score += 10
	default:
		issues = append(issues, "mrz text length far from expected")
	}

	// Checksum.
	warnings := len(rec.ChecksumReport.Warnings)
	switch {
	case warnings == 0:
		score += 30
	case warnings == 1:
		score += 20
	case warnings == 2:
		score += 10
	default:
		issues = append(issues, "multiple checksum failures")
	}

	// Field completeness.
	missing := 0
	if rec.FirstName == "" {
		missing++
	}
	if rec.LastName == "" {
		missing++
	}
	if rec.IDNumber == "" {
		missing++
	}
	if rec.DateOfBirth == "" || rec.DateOfBirth == unknownDate {
		missing++
	}
	switch {
	case missing == 0:
		score += 30
	case missing == 1:
		score += 20
		issues = append(issues, "one identity field missing")
	default:
		score += 10
		issues = append(issues, "multiple identity fields missing")
	}

	// Character plausibility.
	namesHaveDigits := containsDigit(rec.FirstName) || containsDigit(rec.LastName)
	idHasLetters := containsLetter(rec.IDNumber)
	switch {
	case !namesHaveDigits && !idHasLetters:
		score += 20
	case namesHaveDigits && idHasLetters:
		issues = append(issues, "names contain digits and id contains letters")
	default:
		score += 10
		issues = append(issues, "implausible characters in identity fields")
	}

	return models.MrzQuality{
		Score:  score,
		Band:   band(score),
		Issues: issues,
	}
}

func band(score int) models.QualityBand {
	switch {
	case score >= 80:
		return models.QualityHigh
	case score >= 60:
		return models.QualityMedium
	default:
		return models.QualityLow
	}
}

func containsDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func containsLetter(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}
