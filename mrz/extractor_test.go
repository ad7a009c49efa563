package mrz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/models"
)

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) Recognize(models.Frame, string) (string, error) {
	return f.text, f.err
}

type fakePreprocessor struct {
	out models.Frame
	err error
}

func (f fakePreprocessor) Preprocess(models.Frame) (models.Frame, error) {
	return f.out, f.err
}

func TestExtractorAcceptsLongFirstStrategyOutright(t *testing.T) {
	text := "I<UTOD231458907<<<<<<<<<<<<<<<\n7408122F1204159UTO<<<<<<<<<<<6\nERIKSSON<<ANNA<MARIA<<<<<<<<<<"
	ex := &Extractor{
		Recognizer:   fakeRecognizer{text: text},
		Preprocessor: fakePreprocessor{},
		Now:          func() time.Time { return fixedNow },
	}

	rec, err := ex.Extract(models.Frame{Width: 10, Height: 10, Pix: make([]byte, 400)})
	require.NoError(t, err)
	assert.Equal(t, models.TD1, rec.DocumentType)
	assert.Equal(t, "D23145890", rec.IDNumber)
}

func TestExtractorCorrectsOCRDigitLetterConfusion(t *testing.T) {
	// OCR misreads the 'O' in ERIKSSON as '0' and the 'I' in ANNA's
	// MARIA as '1'; the parser must still recover the clean name.
	text := "I<UTOD231458907<<<<<<<<<<<<<<<\n7408122F1204159UTO<<<<<<<<<<<6\nERIKSS0N<<ANNA<MAR1A<<<<<<<<<<"
	ex := &Extractor{
		Recognizer:   fakeRecognizer{text: text},
		Preprocessor: fakePreprocessor{},
		Now:          func() time.Time { return fixedNow },
	}

	rec, err := ex.Extract(models.Frame{Width: 10, Height: 10, Pix: make([]byte, 400)})
	require.NoError(t, err)
	assert.Equal(t, "ERIKSSON", rec.LastName)
	assert.Equal(t, "ANNA MARIA", rec.FirstName)
}

func TestExtractorReturnsUnreadableBelowMinLength(t *testing.T) {
	ex := &Extractor{
		Recognizer:   fakeRecognizer{text: "XZ<<"},
		Preprocessor: fakePreprocessor{},
		Now:          func() time.Time { return fixedNow },
	}

	_, err := ex.Extract(models.Frame{Width: 10, Height: 10, Pix: make([]byte, 400)})
	assert.Error(t, err)
}
