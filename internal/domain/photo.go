package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type CapturedPhoto struct {
	Filename  string    `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodeDataURL splits a "data:<mime>;base64,<data>" URL. A bare base64
// string is accepted with an empty mime type.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	var mime, encoded string
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: missing data separator", ErrInvalidImage)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("%w: data url is not base64", ErrInvalidImage)
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		encoded = body
	} else {
		encoded = s
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return data, mime, nil
}

func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
