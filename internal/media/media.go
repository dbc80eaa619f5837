// Package media stores captured images (product photos, bank-transfer
// receipts) and returns the string reference kept in the catalog or order.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultMaxBytes caps an uploaded image.
const DefaultMaxBytes = 5 << 20

var (
	ErrEmpty    = errors.New("media: empty file")
	ErrTooLarge = errors.New("media: file too large")
	ErrNotImage = errors.New("media: not an image")
)

// ImageStore persists an image and returns a reference usable as an img src.
type ImageStore interface {
	Store(ctx context.Context, filename string, data []byte) (string, error)
}

// DetectImage returns the MIME type of data when it is an image.
func DetectImage(data []byte, maxBytes int) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mime)
	}
	return mime, nil
}

// DataURIStore inlines the image as a base64 data URI, so the reference is
// the image itself.
type DataURIStore struct {
	MaxBytes int
}

// Store encodes data as data:<mime>;base64,<payload>.
func (s DataURIStore) Store(_ context.Context, _ string, data []byte) (string, error) {
	mime, err := DetectImage(data, s.MaxBytes)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
