package face

import (
	"bytes"
	"image/jpeg"

	"identity-verify/images"
	"identity-verify/models"
)

func encodeFrameJPEG(f models.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, images.ToImage(f), &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
