package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrAlreadyWatching = errors.New("a location subscription is already active")

// Sample is the single current location reading held process-wide. Fields
// stay nil until the first fix; Err carries the latest provider failure.
type Sample struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
	Err       string     `json:"error,omitempty"`
}

func (s Sample) HasFix() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// LatLongText renders the coordinates for human consumption e.g. the
// advisory prompt. Falls back to an unknown marker without a fix.
func (s Sample) LatLongText() string {
	if !s.HasFix() {
		return "Desconhecida"
	}

	return fmt.Sprintf("%.6f, %.6f", *s.Latitude, *s.Longitude)
}

// Update is one reading pushed by a Provider. Either a position or an error.
type Update struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
	Err       error
}

// WatchOptions mirror the platform geolocation request: high-accuracy mode,
// a per-fix timeout & no reuse of cached fixes.
type WatchOptions struct {
	HighAccuracy bool
	FixTimeout   time.Duration
	MaximumAge   time.Duration
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		HighAccuracy: true,
		FixTimeout:   10 * time.Second,
		MaximumAge:   0,
	}
}

// Provider is the platform geolocation capability. Watch yields successive
// updates until ctx is cancelled; implementations must release the
// underlying platform listener when ctx ends.
type Provider interface {
	Watch(ctx context.Context, opts WatchOptions) (<-chan Update, error)
}

// Tracker owns the single continuous location subscription for the app
// session & exposes the latest sample.
type Tracker struct {
	mu       sync.RWMutex
	current  Sample
	watching bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Start establishes the one process-wide subscription. The subscription is
// released when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context, provider Provider, opts WatchOptions) error {
	t.mu.Lock()
	if t.watching {
		t.mu.Unlock()
		return ErrAlreadyWatching
	}
	t.watching = true
	t.mu.Unlock()

	updates, err := provider.Watch(ctx, opts)
	if err != nil {
		t.mu.Lock()
		t.watching = false
		t.mu.Unlock()
		return errors.Wrap(err, "unable to start location subscription")
	}

	go t.consume(ctx, updates)

	return nil
}

// Current returns a copy of the latest sample
func (t *Tracker) Current() Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.current
}

func (t *Tracker) consume(ctx context.Context, updates <-chan Update) {
	defer func() {
		t.mu.Lock()
		t.watching = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.apply(update)
		}
	}
}

// apply overwrites the current sample. On a provider error the previous
// coordinates are retained & only the error field is set - coordinates are
// never synthesized.
func (t *Tracker) apply(update Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if update.Err != nil {
		t.current.Err = update.Err.Error()
		return
	}

	lat, lon, acc, ts := update.Latitude, update.Longitude, update.Accuracy, update.Timestamp
	t.current = Sample{
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  &acc,
		Timestamp: &ts,
	}
}
