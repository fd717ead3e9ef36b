package evidence

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	"go.uber.org/zap"

	"sosguard/server/logger"
)

type Facing string

const (
	FacingFront       Facing = "user"
	FacingEnvironment Facing = "environment"
)

const (
	// Modest target resolution keeps memory & latency down on old phones
	TargetWidth  = 640
	TargetHeight = 480

	// Low quality keeps the payload small for slow mobile networks
	DefaultQuality = 65

	DefaultCaptureTimeout = 4 * time.Second

	// Wait after the stream starts so auto-focus/exposure can settle.
	// A deliberate quality-over-speed tradeoff for emergency photos.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Constraints describe the camera stream request
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Stream is a live camera stream. Stop must release the device; it is safe
// to call more than once.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Stop()
}

// Camera is the platform capability that opens camera streams
type Camera interface {
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Image is one captured still frame
type Image struct {
	Facing     Facing    `json:"facing"`
	MIMEType   string    `json:"mimeType"`
	Data       []byte    `json:"data"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Set holds the up-to-two images captured during one panic activation
type Set struct {
	Front       *Image `json:"front"`
	Environment *Image `json:"environment"`
}

func (s *Set) Present() bool {
	return s.Front != nil || s.Environment != nil
}

func (s *Set) Images() []Image {
	images := []Image{}
	if s.Front != nil {
		images = append(images, *s.Front)
	}
	if s.Environment != nil {
		images = append(images, *s.Environment)
	}

	return images
}

type Options struct {
	Timeout     time.Duration
	SettleDelay time.Duration
	Quality     int
}

// Capturer grabs single still frames from the device camera. Every code
// path that opens a stream stops all of its tracks before returning -
// success, timeout or error.
type Capturer struct {
	camera      Camera
	timeout     time.Duration
	settleDelay time.Duration
	quality     int
	logg        *zap.SugaredLogger
}

func NewCapturer(camera Camera, opts Options) *Capturer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCaptureTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}

	return &Capturer{
		camera:      camera,
		timeout:     opts.Timeout,
		settleDelay: opts.SettleDelay,
		quality:     opts.Quality,
		logg:        logger.NewLogger(),
	}
}

// Capture acquires a stream for the requested facing side, waits for the
// camera to settle, draws exactly one frame & encodes it as jpeg. A nil
// result is a normal, expected outcome(permission denied, no camera, device
// busy, timeout) - the panic flow continues without the photo.
func (c *Capturer) Capture(ctx context.Context, facing Facing) *Image {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered so the acquisition goroutine never leaks when the
	// timeout wins the race
	resultChan := make(chan *Image, 1)

	go func() {
		resultChan <- c.acquireAndDraw(ctx, facing)
	}()

	select {
	case img := <-resultChan:
		return img
	case <-ctx.Done():
		c.logg.Infof("capture(%v) timed out after %v", facing, c.timeout)
		return nil
	}
}

func (c *Capturer) acquireAndDraw(ctx context.Context, facing Facing) *Image {
	stream, err := c.camera.Open(ctx, Constraints{Facing: facing, Width: TargetWidth, Height: TargetHeight})
	if err != nil {
		c.logg.Infof("capture(%v) unavailable: %v", facing, err)
		return nil
	}
	defer stream.Stop()

	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return nil
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		c.logg.Infof("capture(%v) failed to draw frame: %v", facing, err)
		return nil
	}

	buf := bytes.Buffer{}
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: c.quality}); err != nil {
		c.logg.Errorf("capture(%v) failed to encode frame: %v", facing, err)
		return nil
	}

	return &Image{
		Facing:     facing,
		MIMEType:   "image/jpeg",
		Data:       buf.Bytes(),
		CapturedAt: time.Now(),
	}
}
