package imagebuf

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"gocv.io/x/gocv"
)

// DefaultMaxBytes is the default maximum decoded image size (10 MiB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// supportedTypes are the formats OpenCV decodes reliably.
var supportedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Validator bounds and decodes image payloads.
type Validator struct {
	MaxBytes int64
}

// NewValidator creates a validator. A non-positive maxBytes selects DefaultMaxBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes}
}

// StripDataURL removes a "data:<mime>;base64," prefix if present. Everything
// after the first comma is kept, so a payload with further commas fails base64
// decoding.
func StripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// EstimateDecodedSize returns the decoded byte size implied by a base64 length.
func EstimateDecodedSize(b64 string) int64 {
	return int64(len(b64)) * 3 / 4
}

// CheckSize rejects a base64 payload whose decoded size estimate exceeds the
// maximum. It never decodes.
func (v *Validator) CheckSize(payload string) error {
	data := StripDataURL(payload)
	// len*3/4 > max, kept in integers
	if int64(len(data))*3 > v.MaxBytes*4 {
		return tooLarge(v.MaxBytes)
	}
	return nil
}

// Decode validates a base64 payload (optionally data-URL prefixed) and decodes
// it to a pixel buffer. The size estimate is checked before any decoding.
func (v *Validator) Decode(payload string) (*Buffer, error) {
	if err := v.CheckSize(payload); err != nil {
		return nil, err
	}

	raw, err := decodeBase64(StripDataURL(payload))
	if err != nil {
		return nil, invalidImage("malformed base64")
	}
	return v.decodePixels(raw)
}

// DecodeBytes validates a raw upload and decodes it to a pixel buffer.
func (v *Validator) DecodeBytes(raw []byte) (*Buffer, error) {
	if int64(len(raw)) > v.MaxBytes {
		return nil, tooLarge(v.MaxBytes)
	}
	return v.decodePixels(raw)
}

func (v *Validator) decodePixels(raw []byte) (*Buffer, error) {
	if len(raw) == 0 {
		return nil, invalidImage("empty payload")
	}

	mt := mimetype.Detect(raw)
	if !isSupported(mt) {
		return nil, invalidImage("unsupported format " + mt.String())
	}

	mat, err := gocv.IMDecode(raw, gocv.IMReadColor)
	if err != nil {
		return nil, invalidImage("corrupt data")
	}
	return FromMat(mat)
}

func isSupported(mt *mimetype.MIME) bool {
	for _, t := range supportedTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
