// Package platform holds device-capability adapters. The simulated
// implementations stand in for the browser-owned capabilities when the app
// service runs headless(dev mode) & double as test doubles.
package platform

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/pkg/errors"

	"sosguard/server/evidence"
	"sosguard/server/geo"
	"sosguard/server/logger"
)

// ---------------------------------------------------------------------------------//
// Camera
// --------------------------------------------------------------------------------//

// SimStream produces a single flat-colored frame at the requested size
type SimStream struct {
	mu         sync.Mutex
	stopped    bool
	width      int
	height     int
	frameDelay time.Duration
	frameErr   error
}

func (s *SimStream) Frame(ctx context.Context) (image.Image, error) {
	if s.frameDelay > 0 {
		select {
		case <-time.After(s.frameDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.frameErr != nil {
		return nil, s.frameErr
	}

	frame := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for x := 0; x < s.width; x++ {
		for y := 0; y < s.height; y++ {
			frame.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}

	return frame, nil
}

func (s *SimStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
}

func (s *SimStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

// SimCamera simulates camera acquisition. Deny/OpenDelay/FrameDelay make the
// permission-denied, device-busy & timeout paths reproducible.
type SimCamera struct {
	mu         sync.Mutex
	streams    []*SimStream
	Deny       map[evidence.Facing]bool
	OpenDelay  time.Duration
	FrameDelay time.Duration
	FrameErr   error
}

func NewSimCamera() *SimCamera {
	return &SimCamera{Deny: map[evidence.Facing]bool{}}
}

func (c *SimCamera) Open(ctx context.Context, constraints evidence.Constraints) (evidence.Stream, error) {
	if c.OpenDelay > 0 {
		select {
		case <-time.After(c.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.Deny[constraints.Facing] {
		return nil, errors.Errorf("permission denied for %v camera", constraints.Facing)
	}

	stream := &SimStream{
		width:      constraints.Width,
		height:     constraints.Height,
		frameDelay: c.FrameDelay,
		frameErr:   c.FrameErr,
	}

	c.mu.Lock()
	c.streams = append(c.streams, stream)
	c.mu.Unlock()

	return stream, nil
}

// Streams returns every stream the camera handed out, for leak checks
func (c *SimCamera) Streams() []*SimStream {
	c.mu.Lock()
	defer c.mu.Unlock()

	streams := make([]*SimStream, len(c.streams))
	copy(streams, c.streams)

	return streams
}

// ---------------------------------------------------------------------------------//
// Location
// --------------------------------------------------------------------------------//

// SimLocator emits a fixed position on an interval until ctx ends
type SimLocator struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Interval  time.Duration
}

func (l *SimLocator) Watch(ctx context.Context, opts geo.WatchOptions) (<-chan geo.Update, error) {
	interval := l.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	updates := make(chan geo.Update, 1)
	updates <- l.update()

	go func() {
		defer close(updates)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case updates <- l.update():
				default:
				}
			}
		}
	}()

	return updates, nil
}

func (l *SimLocator) update() geo.Update {
	return geo.Update{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Accuracy:  l.Accuracy,
		Timestamp: time.Now(),
	}
}

// ---------------------------------------------------------------------------------//
// Share, open & vibrate
// --------------------------------------------------------------------------------//

// SimSharer records share invocations; Supported & Err configure the
// platform-support gate & the failure mode.
type SimSharer struct {
	mu        sync.Mutex
	Supported bool
	Err       error
	Shares    []SimShare
}

type SimShare struct {
	Target      string
	Text        string
	Attachments int
}

func (s *SimSharer) CanShare(attachments []evidence.Image) bool {
	return s.Supported
}

func (s *SimSharer) Share(ctx context.Context, target, text string, attachments []evidence.Image) error {
	if s.Err != nil {
		return s.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Shares = append(s.Shares, SimShare{Target: target, Text: text, Attachments: len(attachments)})

	return nil
}

// LogOpener records the URIs handed off to the platform. The app service
// does not open URIs itself - the UI layer does - so this adapter just
// logs & remembers them.
type LogOpener struct {
	mu     sync.Mutex
	Err    error
	Opened []string
}

func (o *LogOpener) Open(uri string) error {
	if o.Err != nil {
		return o.Err
	}

	o.mu.Lock()
	o.Opened = append(o.Opened, uri)
	o.mu.Unlock()

	logger.NewLogger().Infof("hand-off: %v", uri)

	return nil
}

func (o *LogOpener) LastOpened() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.Opened) == 0 {
		return ""
	}

	return o.Opened[len(o.Opened)-1]
}

// SimVibrator is a best-effort no-op haptic adapter
type SimVibrator struct {
	mu       sync.Mutex
	Patterns [][]time.Duration
}

func (v *SimVibrator) Vibrate(pattern []time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Patterns = append(v.Patterns, pattern)
}
