package liveness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/face"
	"identity-verify/models"
)

type noopDetector struct{}

func (noopDetector) Detect(f models.Frame) ([]face.DetectedFace, error) {
	return nil, nil
}

// blockingSource blocks its first NextFrame call until release is
// closed, giving a test a window to attempt a second concurrent Start.
type blockingSource struct {
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *blockingSource) NextFrame(ctx context.Context) (models.Frame, error) {
	s.mu.Lock()
	first := s.calls == 0
	s.calls++
	s.mu.Unlock()
	if first {
		<-s.release
	}
	return models.Frame{Width: 4, Height: 4, Pix: make([]byte, 4*4*4)}, nil
}

func TestChallengeRejectsConcurrentStart(t *testing.T) {
	c := &Challenge{Detector: noopDetector{}}
	source := &blockingSource{release: make(chan struct{})}

	out, err := c.Start(context.Background(), source)
	require.NoError(t, err)
	assert.True(t, c.Running())

	_, err = c.Start(context.Background(), source)
	assert.Error(t, err, "a second Start while the first capture is in progress must be a no-op error")

	close(source.release)
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("challenge did not complete after its frame source unblocked")
	}
	assert.False(t, c.Running())
}
