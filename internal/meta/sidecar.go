package meta

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImageSidecar is the JSON document stored next to an exported image payload.
// UserID is null when the image has no owner.
type ImageSidecar struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimetype"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    *int64    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
}

// EncodeSidecar renders an indented sidecar document with a trailing newline.
func EncodeSidecar(s ImageSidecar) ([]byte, error) {
	s.CreatedAt = s.CreatedAt.UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sidecar %q: %w", s.Filename, err)
	}
	return append(data, '\n'), nil
}

// DecodeSidecar parses a sidecar document. Unknown fields are ignored.
func DecodeSidecar(data []byte) (ImageSidecar, error) {
	var s ImageSidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return ImageSidecar{}, fmt.Errorf("decode sidecar: %w", err)
	}
	return s, nil
}
