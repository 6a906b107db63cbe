package render

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Uploader pushes rendered barcode images to an image host over its signed
// multipart upload API.
type Uploader struct {
	BaseURL   string
	APIKey    string
	APISecret string
	HTTP      *http.Client
}

// NewUploader creates an uploader.
func NewUploader(baseURL, apiKey, apiSecret string) *Uploader {
	return &Uploader{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		APISecret: apiSecret,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadResult holds the host's response after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Bytes     int    `json:"bytes"`
}

// UploadBytes uploads raw image bytes.
func (u *Uploader) UploadBytes(data []byte, filename string) (*UploadResult, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"api_key":   u.APIKey,
	}
	params["signature"] = u.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("image host: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("image host: write file failed: %w", err)
	}
	w.Close()

	req, err := http.NewRequest(http.MethodPost, u.BaseURL+"/image/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("image host: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image host: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image host: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("image host: decode response failed: %w", err)
	}
	return &result, nil
}

// sign computes the upload signature. api_key and file are excluded per the
// host's signing rules.
func (u *Uploader) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + u.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
