// Package codec converts inbound notification payloads between their
// transmission form (standard, padded base64) and text.
package codec

import (
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/base64x"

	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
)

// Encode returns the canonical standard base64 form of b, without line breaks.
func Encode(b []byte) string {
	return base64x.StdEncoding.EncodeToString(b)
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// Decode reverses Encode. Line breaks are ignored. Text outside the standard
// alphabet, with missing or extra padding, or with non-zero trailing bits
// fails with an ErrDecode error.
func Decode(text string) ([]byte, error) {
	text = lineBreaks.Replace(text)
	if len(text)%4 != 0 {
		return nil, errspkg.Newf(errspkg.ErrDecode, "decode payload", "length %d is not a multiple of 4", len(text))
	}
	b, err := base64x.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errspkg.New(errspkg.ErrDecode, "decode payload", err)
	}
	if Encode(b) != text {
		return nil, errspkg.Newf(errspkg.ErrDecode, "decode payload", "non-canonical encoding")
	}
	return b, nil
}

// BytesToText interprets b as UTF-8 and fails with an ErrEncoding error on
// invalid sequences.
func BytesToText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errspkg.Newf(errspkg.ErrEncoding, "read payload", "payload is not valid UTF-8")
	}
	return string(b), nil
}

// DecodeText runs Decode followed by BytesToText.
func DecodeText(text string) (string, error) {
	b, err := Decode(text)
	if err != nil {
		return "", err
	}
	return BytesToText(b)
}
