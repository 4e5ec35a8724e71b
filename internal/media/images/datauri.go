package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidImage is returned for uploads that are not a base64 data URL of a decodable image.
var ErrInvalidImage = errors.New("invalid image")

// ParseDataURL splits a "data:<mime>;base64,<payload>" URL into its media
// type and decoded bytes. Only base64 payloads are accepted.
func ParseDataURL(s string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", ErrInvalidImage)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return "", nil, fmt.Errorf("%w: payload must be base64", ErrInvalidImage)
	}
	mediaType = strings.ToLower(params[0])

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad base64 payload", ErrInvalidImage)
		}
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	return mediaType, data, nil
}

// EncodeDataURL builds a base64 data URL. Clients use it to prepare uploads.
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
