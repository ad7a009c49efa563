package mrz

import (
	"bytes"
	"image/png"

	"identity-verify/images"
	"identity-verify/models"
)

func encodeFramePNG(f models.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, images.ToImage(f)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
