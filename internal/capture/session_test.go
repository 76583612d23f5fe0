package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStream is a scriptable device stream that counts its releases.
type fakeStream struct {
	chunks chan []byte

	mu     sync.Mutex
	bins   []byte
	closed int
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 16)}
}

func (f *fakeStream) Chunks() <-chan []byte { return f.chunks }

func (f *fakeStream) FrequencyBins() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bins
}

func (f *fakeStream) setBins(bins []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bins = bins
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed == 0 {
		close(f.chunks)
	}
	f.closed++
	return nil
}

func (f *fakeStream) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDevice hands out a fresh stream per acquisition and tracks how many
// were opened.
type fakeDevice struct {
	mu       sync.Mutex
	err      error
	acquired int
	streams  []*fakeStream
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	d.acquired++
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.streams {
		if s.closeCount() > 0 {
			n++
		}
	}
	return n
}

func (d *fakeDevice) lastStream(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		t.Fatal("no stream acquired")
	}
	return d.streams[len(d.streams)-1]
}

func TestStartStopReleasesStream(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := session.State(); got != StateRecording {
		t.Fatalf("state = %q, want %q", got, StateRecording)
	}

	stream := device.lastStream(t)
	stream.chunks <- []byte("abc")
	stream.chunks <- []byte("def")

	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if artifact == nil {
		t.Fatal("Stop returned no artifact")
	}
	if got := string(artifact.Data); got != "abcdef" {
		t.Errorf("artifact data = %q, want %q", got, "abcdef")
	}
	if artifact.Filename == "" {
		t.Error("artifact filename is empty")
	}

	if got := session.State(); got != StateIdle {
		t.Errorf("state after Stop = %q, want %q", got, StateIdle)
	}
	if device.acquired != 1 || device.releases() != 1 {
		t.Errorf("acquired=%d releases=%d, want 1/1", device.acquired, device.releases())
	}
}

func TestAcquisitionsEqualReleases(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	for i := 0; i < 5; i++ {
		if err := session.Start(context.Background()); err != nil {
			t.Fatalf("Start #%d: %v", i, err)
		}
		if _, err := session.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i, err)
		}
	}

	if device.acquired != 5 {
		t.Errorf("acquired = %d, want 5", device.acquired)
	}
	if got := device.releases(); got != 5 {
		t.Errorf("releases = %d, want 5", got)
	}
}

func TestStartWhileRecordingKeepsSingleStream(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := session.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start = %v, want ErrAlreadyRecording", err)
	}
	if device.acquired != 1 {
		t.Errorf("acquired = %d, want 1", device.acquired)
	}
	session.Close()
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	session := NewSession(&fakeDevice{})

	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if artifact != nil {
		t.Errorf("Stop while idle emitted an artifact: %+v", artifact)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

func TestDoubleStopEmitsOnce(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first, err := session.Stop()
	if err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if first == nil {
		t.Fatal("first Stop emitted nothing")
	}
	second, err := session.Stop()
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if second != nil {
		t.Errorf("second Stop emitted an artifact: %+v", second)
	}
}

func TestCloseMidRecordingEmitsNothing(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := device.lastStream(t)
	stream.chunks <- []byte("partial")

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("state after Close = %q, want %q", got, StateIdle)
	}
	if got := device.releases(); got != 1 {
		t.Errorf("releases = %d, want 1", got)
	}

	// Teardown must not leave a stale artifact behind.
	artifact, err := session.Stop()
	if err != nil || artifact != nil {
		t.Errorf("Stop after Close = (%v, %v), want (nil, nil)", artifact, err)
	}
}

func TestCloseWhileIdleIsNoOp(t *testing.T) {
	session := NewSession(&fakeDevice{})
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStartDeviceUnavailable(t *testing.T) {
	device := &fakeDevice{err: errors.New("permission denied")}
	session := NewSession(device)

	err := session.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start = %v, want ErrDeviceUnavailable", err)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

func TestMeterPublishesLevel(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Close()

	stream := device.lastStream(t)
	stream.setBins([]byte{255, 255, 255, 255})

	deadline := time.Now().Add(time.Second)
	for session.Level() < 0.99 {
		if time.Now().After(deadline) {
			t.Fatalf("level = %v, want ~1.0", session.Level())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNormalizedLevel(t *testing.T) {
	tests := []struct {
		name string
		bins []byte
		want float64
	}{
		{"empty", nil, 0},
		{"silence", []byte{0, 0, 0}, 0},
		{"full scale", []byte{255, 255}, 1},
		{"mid", []byte{0, 255}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizedLevel(tt.bins)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("NormalizedLevel(%v) = %v, want %v", tt.bins, got, tt.want)
			}
		})
	}
}

func TestStartContextCancelKeepsRecording(t *testing.T) {
	device := &fakeDevice{}
	session := NewSession(device)

	// The acquisition context is request-scoped for HTTP callers and dies
	// as soon as the handler returns; the recording must not die with it.
	ctx, cancel := context.WithCancel(context.Background())
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	stream := device.lastStream(t)
	stream.chunks <- []byte("abc")
	stream.chunks <- []byte("def")

	if got := session.State(); got != StateRecording {
		t.Fatalf("state after caller cancel = %q, want %q", got, StateRecording)
	}
	if got := stream.closeCount(); got != 0 {
		t.Fatalf("stream closed %d times by caller cancel, want 0", got)
	}

	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if artifact == nil || string(artifact.Data) != "abcdef" {
		t.Fatalf("artifact = %+v, want full chunk data", artifact)
	}
}
