package codec

import (
	"encoding/json"
	"errors"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes message bodies
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType returns the media type written to Content-Type
	ContentType() string
}

// Shared codec instances; both are stateless.
var (
	JSON     Codec = &JSONCodec{}
	Protobuf Codec = &ProtobufCodec{}
)

// ForContentType picks a codec from a Content-Type or Accept value.
// Parameters such as charset are ignored.
func ForContentType(contentType string) (Codec, error) {
	mediaType := contentType
	for i := 0; i < len(mediaType); i++ {
		if mediaType[i] == ';' {
			mediaType = mediaType[:i]
			break
		}
	}

	switch mediaType {
	case "application/json":
		return JSON, nil
	case "application/x-protobuf", "application/protobuf":
		return Protobuf, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return "application/json; charset=utf-8"
}
