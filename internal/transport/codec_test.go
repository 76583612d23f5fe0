package transport

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("x"),
		[]byte("short opus frame"),
		bytes.Repeat([]byte{0x1a, 0x45, 0xdf, 0xa3}, 20000), // > one decode chunk
	}
	for _, payload := range payloads {
		encoded := EncodeAudio(payload)
		decoded, err := DecodeAudio(encoded)
		if err != nil {
			t.Fatalf("DecodeAudio(%d bytes): %v", len(payload), err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Errorf("round trip of %d bytes mismatched", len(payload))
		}
	}
}

func TestDecodeAudioEmpty(t *testing.T) {
	if _, err := DecodeAudio(""); err == nil {
		t.Error("DecodeAudio(\"\") = nil error, want error")
	}
}

func TestDecodeAudioMalformed(t *testing.T) {
	if _, err := DecodeAudio("not!!valid@@base64"); err == nil {
		t.Error("DecodeAudio with invalid input = nil error, want error")
	}
}
