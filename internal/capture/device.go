package capture

import (
	"context"
)

// Stream is a live audio input, usable simultaneously for chunked recording
// and frequency-domain level analysis. Close releases the underlying device;
// the chunk channel is closed once the stream has fully drained.
type Stream interface {
	// Chunks yields encoded audio buffers in capture order.
	Chunks() <-chan []byte
	// FrequencyBins returns the current frequency-bin magnitudes, one byte
	// per bin in the 0-255 range. May return nil before the first sample.
	FrequencyBins() []byte
	Close() error
}

// Device grants exclusive access to an audio input. The context bounds the
// acquisition attempt only; the returned stream lives until Close and must
// never retain ctx.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}
