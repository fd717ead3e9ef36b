package geo

import "context"

// PushProvider adapts UI-pushed position updates to the Provider contract.
// The mobile web layer owns the geolocation permission, so it watches the
// device position itself & forwards every reading here.
type PushProvider struct {
	updates chan Update
}

func NewPushProvider() *PushProvider {
	return &PushProvider{updates: make(chan Update, 8)}
}

func (p *PushProvider) Watch(ctx context.Context, opts WatchOptions) (<-chan Update, error) {
	return p.updates, nil
}

// Push forwards one reading; drops it if nothing is consuming fast enough,
// a stale fix has no value.
func (p *PushProvider) Push(update Update) {
	select {
	case p.updates <- update:
	default:
	}
}
