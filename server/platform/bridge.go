package platform

import (
	"context"
	"image"
	"sync"

	"sosguard/server/evidence"
)

// BridgeCamera adapts UI-pushed frames to the Camera contract. The browser
// owns the camera permission, so it acquires the stream itself & forwards
// a frame here; Frame blocks until one arrives or the capture timeout ends
// the wait.
type BridgeCamera struct {
	mu     sync.Mutex
	frames map[evidence.Facing]chan image.Image
}

func NewBridgeCamera() *BridgeCamera {
	return &BridgeCamera{frames: make(map[evidence.Facing]chan image.Image)}
}

// Push forwards one decoded frame from the UI for the given facing side
func (c *BridgeCamera) Push(facing evidence.Facing, frame image.Image) {
	select {
	case c.channelFor(facing) <- frame:
	default:
		// No capture waiting; a stale frame has no value
	}
}

func (c *BridgeCamera) Open(ctx context.Context, constraints evidence.Constraints) (evidence.Stream, error) {
	return &bridgeStream{frames: c.channelFor(constraints.Facing)}, nil
}

func (c *BridgeCamera) channelFor(facing evidence.Facing) chan image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.frames[facing]; !ok {
		c.frames[facing] = make(chan image.Image, 1)
	}

	return c.frames[facing]
}

type bridgeStream struct {
	mu      sync.Mutex
	stopped bool
	frames  chan image.Image
}

func (s *bridgeStream) Frame(ctx context.Context) (image.Image, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *bridgeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
}
