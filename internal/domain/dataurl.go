package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL is a decoded "data:<mime>;base64,<payload>" value.
type DataURL struct {
	MIME string
	Data []byte
}

// Ext returns the storage extension for the payload's media type. Anything
// that is not PNG is written as jpg, matching the upload contract.
func (d DataURL) Ext() string {
	if strings.Contains(d.MIME, "image/png") {
		return "png"
	}
	return "jpg"
}

// ParseDataURL decodes an inbound data URL. The header is untrusted client
// input; only the base64 payload after the first comma is decoded.
func ParseDataURL(raw string) (*DataURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingField
	}
	header, payload, found := strings.Cut(raw, ",")
	if !found {
		return nil, fmt.Errorf("%w: data url has no payload", ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrInvalidPayload)
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return &DataURL{MIME: mime, Data: data}, nil
}
