package transport

import (
	"encoding/base64"
	"fmt"
)

// decodeChunkSize keeps single allocations bounded when decoding large
// payloads. Must stay a multiple of 4 so every slice is a valid base64
// quantum.
const decodeChunkSize = 32768

// EncodeAudio converts a finalized audio artifact into its transport-safe
// representation. No binary data crosses the processing boundary un-encoded.
func EncodeAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeAudio converts a base64 payload back into raw audio bytes,
// processing the input in chunks to avoid one huge intermediate buffer.
func DecodeAudio(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty audio payload")
	}

	decoded := make([]byte, 0, base64.StdEncoding.DecodedLen(len(encoded)))
	for position := 0; position < len(encoded); position += decodeChunkSize {
		end := position + decodeChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		part, err := base64.StdEncoding.DecodeString(encoded[position:end])
		if err != nil {
			return nil, fmt.Errorf("decoding audio payload: %w", err)
		}
		decoded = append(decoded, part...)
	}
	return decoded, nil
}
