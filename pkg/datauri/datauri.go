// Package datauri decodes and encodes base64 data URIs of the form
// "data:<mime>;base64,<payload>".
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for any input that is not a decodable base64 data URI.
var ErrMalformed = errors.New("malformed data URI")

// File is a decoded data URI.
type File struct {
	MIMEType string
	Data     []byte
}

// Decode parses s and returns the decoded payload. The payload is decoded in
// a single pass over the substring after the first comma.
func Decode(s string) (File, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return File{}, fmt.Errorf("%w: missing payload section", ErrMalformed)
	}
	header, payload := s[:comma], s[comma+1:]

	mime, err := parseHeader(header)
	if err != nil {
		return File{}, err
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return File{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	enc := base64.StdEncoding
	if len(payload)%4 != 0 && !strings.HasSuffix(payload, "=") {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(payload)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("%w: payload decodes to zero bytes", ErrMalformed)
	}

	return File{MIMEType: mime, Data: data}, nil
}

// parseHeader validates "data:<mime>[;param...];base64" and returns the
// lower-cased media type without parameters.
func parseHeader(header string) (string, error) {
	rest, ok := strings.CutPrefix(header, "data:")
	if !ok {
		return "", fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}

	parts := strings.Split(rest, ";")
	if len(parts) < 2 || !strings.EqualFold(strings.TrimSpace(parts[len(parts)-1]), "base64") {
		return "", fmt.Errorf("%w: payload is not base64 encoded", ErrMalformed)
	}

	return strings.ToLower(strings.TrimSpace(parts[0])), nil
}

// Encode builds a base64 data URI for data.
func Encode(mime string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
