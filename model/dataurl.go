package model

import (
	"encoding/base64"
	"strings"
)

// ParseDataURL splits a base64 data URL ("data:image/png;base64,...") into
// its media type and decoded payload.
func ParseDataURL(url string) (mediaType string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mediaType, data, true
}
