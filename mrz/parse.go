package mrz

import (
	"fmt"
	"strings"
	"time"

	"identity-verify/models"
)

// ParseLines turns already-cleaned, canonical-width MRZ lines into an
// MrzRecord, detecting the document format in TD1, TD3, TD2 order (the
// order that resolves TD2/TD3's shared 2-line shape correctly: TD3
// lines are 44 wide, TD2 lines are 36, so width alone disambiguates
// once TD1's 3-line shape is ruled out).
func ParseLines(lines []string, now time.Time) (models.MrzRecord, error) {
	switch len(lines) {
	case 3:
		return parseTD1(lines, now)
	case 2:
		switch len(lines[0]) {
		case 44:
			return parseTD3(lines, now)
		case 36:
			return parseTD2(lines, now)
		}
	}
	return models.MrzRecord{}, fmt.Errorf("mrz: unrecognized line shape (%d lines, width %d)", len(lines), lineWidth(lines))
}

func lineWidth(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	return len(lines[0])
}

func parseTD1(lines []string, now time.Time) (models.MrzRecord, error) {
	l1 := padLine(lines[0], 30)
	l2 := padLine(lines[1], 30)
	l3 := padLine(lines[2], 30)

	var warnings []string

	idNumber, idWarn := resolveTD1IDNumber(l1)
	if idWarn != "" {
		warnings = append(warnings, idWarn)
	}

	dob := l2[0:6]
	if !verifyCheckDigit(dob, l2[6]) {
		warnings = append(warnings, "date of birth check digit mismatch")
	}
	sex := l2[7:8]
	expiry := l2[8:14]
	if !verifyCheckDigit(expiry, l2[14]) {
		warnings = append(warnings, "expiry date check digit mismatch")
	}
	nationality := l2[15:18]

	composite := l1[5:30] + l2[0:7] + l2[8:15] + l2[18:29]
	if !verifyCheckDigit(composite, l2[29]) {
		warnings = append(warnings, "composite check digit mismatch")
	}

	last, first := parseNameField(l3)

	rec := models.MrzRecord{
		FirstName:    cleanAlphaField(first),
		LastName:     cleanAlphaField(last),
		IDNumber:     cleanNumericOrAlnum(idNumber),
		DateOfBirth:  parseBirthDate(dob, now),
		Gender:       parseGender(sex),
		ExpiryDate:   parseExpiryDate(expiry, now),
		Nationality:  cleanAlphaField(nationality),
		DocumentType: models.TD1,
		RawLines:     []string{l1, l2, l3},
		ChecksumReport: models.ChecksumReport{
			Warnings: warnings,
		},
	}
	return rec, nil
}

// resolveTD1IDNumber implements Open Question 1: prefer the 9-character
// document-number slice if its check digit validates, otherwise fall
// back to the 10-character slice (document number including a
// continuation digit that is not separately checked).
func resolveTD1IDNumber(l1 string) (id string, warning string) {
	nine := l1[5:14]
	check := l1[14]
	if verifyCheckDigit(nine, check) {
		return nine, ""
	}
	ten := l1[5:15]
	return ten, "document number check digit mismatch"
}

func parseTD2(lines []string, now time.Time) (models.MrzRecord, error) {
	l1 := padLine(lines[0], 36)
	l2 := padLine(lines[1], 36)

	var warnings []string

	docNum := l2[0:9]
	if !verifyCheckDigit(docNum, l2[9]) {
		warnings = append(warnings, "document number check digit mismatch")
	}
	nationality := l2[10:13]
	dob := l2[13:19]
	if !verifyCheckDigit(dob, l2[19]) {
		warnings = append(warnings, "date of birth check digit mismatch")
	}
	sex := l2[20:21]
	expiry := l2[21:27]
	if !verifyCheckDigit(expiry, l2[27]) {
		warnings = append(warnings, "expiry date check digit mismatch")
	}

	last, first := parseNameField(l1[5:36])

	rec := models.MrzRecord{
		FirstName:    cleanAlphaField(first),
		LastName:     cleanAlphaField(last),
		IDNumber:     cleanNumericOrAlnum(docNum),
		DateOfBirth:  parseBirthDate(dob, now),
		Gender:       parseGender(sex),
		ExpiryDate:   parseExpiryDate(expiry, now),
		Nationality:  cleanAlphaField(nationality),
		DocumentType: models.TD2,
		RawLines:     []string{l1, l2},
		ChecksumReport: models.ChecksumReport{
			Warnings: warnings,
		},
	}
	return rec, nil
}

func parseTD3(lines []string, now time.Time) (models.MrzRecord, error) {
	l1 := padLine(lines[0], 44)
	l2 := padLine(lines[1], 44)

	var warnings []string

	docNum := l2[0:9]
	if !verifyCheckDigit(docNum, l2[9]) {
		warnings = append(warnings, "document number check digit mismatch")
	}
	nationality := l2[10:13]
	dob := l2[13:19]
	if !verifyCheckDigit(dob, l2[19]) {
		warnings = append(warnings, "date of birth check digit mismatch")
	}
	sex := l2[20:21]
	expiry := l2[21:27]
	if !verifyCheckDigit(expiry, l2[27]) {
		warnings = append(warnings, "expiry date check digit mismatch")
	}

	composite := l2[0:10] + l2[13:20] + l2[21:28] + l2[28:43]
	if !verifyCheckDigit(composite, l2[43]) {
		warnings = append(warnings, "composite check digit mismatch")
	}

	last, first := parseNameField(l1[5:44])

	rec := models.MrzRecord{
		FirstName:    cleanAlphaField(first),
		LastName:     cleanAlphaField(last),
		IDNumber:     cleanNumericOrAlnum(docNum),
		DateOfBirth:  parseBirthDate(dob, now),
		Gender:       parseGender(sex),
		ExpiryDate:   parseExpiryDate(expiry, now),
		Nationality:  cleanAlphaField(nationality),
		DocumentType: models.TD3,
		RawLines:     []string{l1, l2},
		ChecksumReport: models.ChecksumReport{
			Warnings: warnings,
		},
	}
	return rec, nil
}

func parseGender(s string) string {
	switch s {
	case "M", "F":
		return s
	default:
		return "X"
	}
}

// parseNameField splits a names field of the form
// "SURNAME<<GIVEN<MIDDLE<<<<<<" into last and first (space-joined
// given names), trimming filler.
func parseNameField(field string) (last, first string) {
	idx := strings.Index(field, "<<")
	var surname, givenBlock string
	if idx < 0 {
		surname = field
	} else {
		surname = field[:idx]
		givenBlock = field[idx+2:]
	}
	last = strings.TrimRight(strings.ReplaceAll(surname, "<", " "), " ")

	var given []string
	for _, part := range strings.Split(givenBlock, "<") {
		if part != "" {
			given = append(given, part)
		}
	}
	first = strings.Join(given, " ")
	return last, first
}

// cleanAlphaField corrects OCR digit/letter confusion in a field that
// should be purely alphabetic (plus spaces): 0->O, 1->I, then strips
// anything still not a letter or space.
func cleanAlphaField(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '0':
			c = 'O'
		case '1':
			c = 'I'
		}
		if (c >= 'A' && c <= 'Z') || c == ' ' {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// cleanNumericOrAlnum corrects OCR letter/digit confusion in a document
// number field, which ICAO allows to be alphanumeric. '<' filler is
// dropped; the characters most commonly confused by OCR (O/0, I or L/1)
// are normalized only when that leaves an all-digit number, so a
// genuinely alphanumeric number such as "L898902C3" is kept as read.
func cleanNumericOrAlnum(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	normalized := normalizeDigits(s)
	for i := 0; i < len(normalized); i++ {
		if normalized[i] < '0' || normalized[i] > '9' {
			return s
		}
	}
	return normalized
}
