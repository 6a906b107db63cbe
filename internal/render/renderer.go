package render

import "fmt"

// Renderer turns token values into scannable image references. Rendering is
// best-effort everywhere it is used: a render failure never fails issuance.
type Renderer struct {
	uploader *Uploader
}

// NewRenderer creates a renderer. A nil uploader degrades to inline data URLs.
func NewRenderer(uploader *Uploader) *Renderer {
	return &Renderer{uploader: uploader}
}

// Render produces the rendered_code reference for a token value: a hosted
// image URL when an uploader is configured, otherwise an inline data URL.
func (r *Renderer) Render(value, filename string) (string, error) {
	if r.uploader == nil {
		return EncodeDataURL(value)
	}
	png, err := EncodePNG(value)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	result, err := r.uploader.UploadBytes(png, filename)
	if err != nil {
		return "", err
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return result.URL, nil
}
