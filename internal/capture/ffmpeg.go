package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// FFmpegDevice captures the default microphone through an ffmpeg child
// process writing WebM/Opus to stdout.
type FFmpegDevice struct {
	// InputFormat and Input override the per-OS defaults, e.g. "alsa" and
	// "default" on Linux or "avfoundation" and ":default" on macOS.
	InputFormat string
	Input       string
}

// NewDefaultDevice returns an FFmpegDevice configured for the host OS.
func NewDefaultDevice() *FFmpegDevice {
	if runtime.GOOS == "darwin" {
		return &FFmpegDevice{InputFormat: "avfoundation", Input: ":default"}
	}
	return &FFmpegDevice{InputFormat: "alsa", Input: "default"}
}

// Acquire starts the ffmpeg capture process. It fails when ffmpeg is missing
// or the input device cannot be opened, which callers surface as a
// device-unavailable condition.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Stream, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	// The recording outlives the acquisition context (request-scoped for
	// HTTP callers), so the process is owned by the returned stream alone
	// and released in Close, never by ctx cancellation.
	cmd := exec.Command("ffmpeg",
		"-f", d.InputFormat,
		"-i", d.Input,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libopus",
		"-f", "webm",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching to ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:    cmd,
		stdout: stdout,
		chunks: make(chan []byte, 16),
	}
	go s.read()
	return s, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	chunks chan []byte

	mu     sync.Mutex
	recent []byte

	closeOnce sync.Once
}

func (s *ffmpegStream) Chunks() <-chan []byte {
	return s.chunks
}

// FrequencyBins buckets the most recent chunk into 32 coarse amplitude bins.
// Callers only need a monotone response to input loudness, not a real FFT.
func (s *ffmpegStream) FrequencyBins() []byte {
	s.mu.Lock()
	recent := s.recent
	s.mu.Unlock()
	if len(recent) == 0 {
		return nil
	}

	const binCount = 32
	bins := make([]byte, binCount)
	span := len(recent) / binCount
	if span == 0 {
		span = 1
	}
	for i := 0; i < binCount; i++ {
		start := i * span
		if start >= len(recent) {
			break
		}
		end := start + span
		if end > len(recent) {
			end = len(recent)
		}
		var peak int
		for _, b := range recent[start:end] {
			// Treat bytes as signed samples; distance from the zero line
			// approximates magnitude.
			mag := int(b)
			if mag >= 128 {
				mag -= 128
			} else {
				mag = 128 - mag
			}
			if mag > peak {
				peak = mag
			}
		}
		scaled := peak * 2
		if scaled > 255 {
			scaled = 255
		}
		bins[i] = byte(scaled)
	}
	return bins
}

func (s *ffmpegStream) read() {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.mu.Lock()
			s.recent = chunk
			s.mu.Unlock()
			s.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// Close stops the ffmpeg process and drains the reader; the chunk channel is
// closed once the final buffers have been delivered.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// Wait reaps the child and unblocks the stdout reader.
		_ = s.cmd.Wait()
	})
	return nil
}
