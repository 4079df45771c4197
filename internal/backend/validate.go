package backend

import (
	"bytes"
	"fmt"
)

// Raster signatures accepted as image input.
var imageSniffs = []struct {
	mime   string
	prefix []byte
	offset int
}{
	{"image/jpeg", []byte{0xFF, 0xD8, 0xFF}, 0},
	{"image/png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, 0},
	{"image/gif", []byte("GIF8"), 0},
	{"image/webp", []byte("WEBP"), 8},
}

// SniffImage returns the mime type of data, or an ErrValidation wrap
// when data does not start with a known raster signature.
func SniffImage(data []byte) (string, error) {
	for _, s := range imageSniffs {
		end := s.offset + len(s.prefix)
		if len(data) >= end && bytes.Equal(data[s.offset:end], s.prefix) {
			return s.mime, nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized image format", ErrValidation)
}

func (r Request) validate(maxImageBytes, maxPromptChars int) (mime string, err error) {
	if !Known(r.Backend) {
		return "", fmt.Errorf("%w: unknown backend %q", ErrValidation, r.Backend)
	}
	if r.Prompt == "" {
		return "", fmt.Errorf("%w: empty prompt", ErrValidation)
	}
	if maxPromptChars > 0 && len(r.Prompt) > maxPromptChars {
		return "", fmt.Errorf("%w: prompt exceeds %d chars", ErrValidation, maxPromptChars)
	}
	if r.Image != nil {
		if len(r.Image) == 0 {
			return "", fmt.Errorf("%w: empty image", ErrValidation)
		}
		if maxImageBytes > 0 && len(r.Image) > maxImageBytes {
			return "", fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, maxImageBytes)
		}
		mime, err = SniffImage(r.Image)
		if err != nil {
			return "", err
		}
	}
	return mime, nil
}
