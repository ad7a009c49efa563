package mrz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/models"
)

var fixedNow = time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)

func TestParseLinesTD1HappyPath(t *testing.T) {
	lines := []string{
		"I<UTOD231458907<<<<<<<<<<<<<<<",
		"7408122F1204159UTO<<<<<<<<<<<6",
		"ERIKSSON<<ANNA<MARIA<<<<<<<<<<",
	}

	rec, err := ParseLines(lines, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, models.TD1, rec.DocumentType)
	assert.Equal(t, "D23145890", rec.IDNumber)
	assert.Equal(t, "1974-08-12", rec.DateOfBirth)
	assert.Equal(t, "F", rec.Gender)
	assert.Equal(t, "2012-04-15", rec.ExpiryDate)
	assert.Equal(t, "UTO", rec.Nationality)
	assert.Equal(t, "ERIKSSON", rec.LastName)
	assert.Equal(t, "ANNA MARIA", rec.FirstName)
	assert.Empty(t, rec.ChecksumReport.Warnings)
}

func TestParseLinesTD3HappyPath(t *testing.T) {
	lines := []string{
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		"L898902C36UTO7408122F1204159ZE184226B<<<<<<1",
	}

	rec, err := ParseLines(lines, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, models.TD3, rec.DocumentType)
	assert.Equal(t, "L898902C3", rec.IDNumber)
	assert.Equal(t, "1974-08-12", rec.DateOfBirth)
	assert.Equal(t, "F", rec.Gender)
	assert.Equal(t, "2012-04-15", rec.ExpiryDate)
	assert.Equal(t, "UTO", rec.Nationality)
	assert.Equal(t, "ERIKSSON", rec.LastName)
	assert.Equal(t, "ANNA MARIA", rec.FirstName)
}

func TestCleanAlphaFieldCorrectsDigitLetterConfusion(t *testing.T) {
	// OCR sometimes reads 'O' as '0' inside a name, and 'I' as '1'.
	assert.Equal(t, "ERIKSSON", cleanAlphaField("ERIKSS0N"))
	assert.Equal(t, "ANNA MARIA", cleanAlphaField("ANNA MAR1A"))
}

func TestParseNameFieldSplitsSurnameAndGivenNames(t *testing.T) {
	last, first := parseNameField("ERIKSSON<<ANNA<MARIA<<<<<<<<<<")
	assert.Equal(t, "ERIKSSON", last)
	assert.Equal(t, "ANNA MARIA", first)
}

func TestResolveTD1IDNumberFallsBackToTenCharsOnBadCheckDigit(t *testing.T) {
	// The check digit at index 14 is mangled (7 -> 0), so the 9-char
	// slice fails validation and the 10-char fallback is used instead.
	l1 := "I<UTOD231458900<<<<<<<<<<<<<<<"
	id, warn := resolveTD1IDNumber(l1)
	assert.Equal(t, "D231458900", id)
	assert.NotEmpty(t, warn)
}
