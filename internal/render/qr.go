package render

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// EncodePNG renders a token value as a QR PNG.
func EncodePNG(value string) ([]byte, error) {
	return qrcode.Encode(value, qrcode.Medium, qrSize)
}

// EncodeDataURL renders a token value as an inline data URL, the fallback
// when no image host is configured.
func EncodeDataURL(value string) (string, error) {
	png, err := EncodePNG(value)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
