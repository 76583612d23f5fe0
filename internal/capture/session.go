package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State identifies where a session is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

var (
	// ErrDeviceUnavailable is returned by Start when the audio input cannot
	// be acquired. The session stays Idle; callers may retry.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrAlreadyRecording is returned by Start when a recording is in
	// progress.
	ErrAlreadyRecording = errors.New("capture session already recording")
)

// meterInterval approximates a rendered-frame cadence for level updates.
const meterInterval = 33 * time.Millisecond

// Artifact is the finalized audio payload of a recording: all chunks
// concatenated into one buffer, plus a generated filename.
type Artifact struct {
	Data     []byte
	Filename string
}

// Session owns the microphone stream lifecycle: at most one device stream is
// open at a time, and the elapsed-time ticker, the level metering loop and
// the stream itself are always released together, whether the recording ends
// in Stop or in Close.
type Session struct {
	device Device

	mu      sync.Mutex
	state   State
	elapsed int
	level   float64
	chunks  [][]byte
	stream  Stream
	cancel  context.CancelFunc
	loops   sync.WaitGroup
}

// NewSession creates an Idle session bound to the given device.
func NewSession(device Device) *Session {
	return &Session{device: device, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns whole seconds recorded so far.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Level returns the latest normalized audio level in [0, 1].
func (s *Session) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Start acquires the audio input and transitions Idle -> Recording. On
// success it resets the elapsed counter and launches the 1-second timer, the
// per-frame level meter and the chunk collector. Acquisition failure surfaces
// as ErrDeviceUnavailable and leaves the session Idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyRecording
	}

	stream, err := s.device.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.elapsed = 0
	s.level = 0
	s.chunks = nil
	s.state = StateRecording

	s.loops.Add(3)
	go s.runTimer(runCtx)
	go s.runMeter(runCtx, stream)
	go s.collect(stream)
	return nil
}

// Stop finalizes the recording: Recording -> Stopping -> Idle. The device
// stream is released, both periodic loops are cancelled, and the accumulated
// chunks are concatenated into a single Artifact, emitted exactly once.
// Calling Stop while not Recording is a no-op returning (nil, nil).
func (s *Session) Stop() (*Artifact, error) {
	stream, ok := s.beginTeardown()
	if !ok {
		return nil, nil
	}
	streamErr := stream.Close()
	s.loops.Wait()

	s.mu.Lock()
	var total int
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	data := make([]byte, 0, total)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}
	s.finishTeardownLocked()
	s.mu.Unlock()

	if streamErr != nil {
		return nil, fmt.Errorf("closing device stream: %w", streamErr)
	}
	return &Artifact{
		Data:     data,
		Filename: fmt.Sprintf("recording-%d.webm", time.Now().Unix()),
	}, nil
}

// Close tears the session down without emitting an artifact: same three
// releases as Stop. Safe to call in any state, including repeatedly.
func (s *Session) Close() error {
	stream, ok := s.beginTeardown()
	if !ok {
		return nil
	}
	err := stream.Close()
	s.loops.Wait()

	s.mu.Lock()
	s.finishTeardownLocked()
	s.mu.Unlock()
	return err
}

// beginTeardown claims the Recording -> Stopping transition. Only one caller
// wins; everyone else sees a no-op.
func (s *Session) beginTeardown() (Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return nil, false
	}
	s.state = StateStopping
	s.cancel()
	return s.stream, true
}

func (s *Session) finishTeardownLocked() {
	s.chunks = nil
	s.stream = nil
	s.cancel = nil
	s.level = 0
	s.state = StateIdle
}

func (s *Session) runTimer(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateRecording {
				s.elapsed++
			}
			s.mu.Unlock()
		}
	}
}

func (s *Session) runMeter(ctx context.Context, stream Stream) {
	defer s.loops.Done()
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level := NormalizedLevel(stream.FrequencyBins())
			s.mu.Lock()
			if s.state == StateRecording {
				s.level = level
			}
			s.mu.Unlock()
		}
	}
}

// collect accumulates chunks until the stream closes its channel. It keeps
// appending through the Stopping state so buffers flushed by Close are not
// lost from the finalized artifact.
func (s *Session) collect(stream Stream) {
	defer s.loops.Done()
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		if s.state != StateIdle {
			s.chunks = append(s.chunks, chunk)
		}
		s.mu.Unlock()
	}
}

// NormalizedLevel maps frequency-bin magnitudes (0-255 each) to a single
// loudness value in [0, 1]: arithmetic mean across bins, normalized by 255.
func NormalizedLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255.0
}
