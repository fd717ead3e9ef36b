package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sosguard/server/evidence"
	"sosguard/server/geo"
	"sosguard/server/logger"
	"sosguard/server/message"
	"sosguard/server/settings"
)

const (
	IDLE_STATE          = "idle"
	CAPTURING_STATE     = "capturing"
	READY_TO_SEND_STATE = "ready_to_send"
	COMPLETED_STATE     = "completed"
)

const (
	RICH_SHARE_CHANNEL = "rich_share"
	GROUP_LINK_CHANNEL = "group_link"
	CHAT_CHANNEL       = "chat"
	SMS_CHANNEL        = "sms"
	DIRECT_SMS_CHANNEL = "direct_sms"
)

var (
	ErrNoRecipients         = errors.New("configure your emergency contacts first")
	ErrActivationInProgress = errors.New("an activation is already capturing")
	ErrNotReady             = errors.New("no activation is ready to send")
	ErrNothingSentYet       = errors.New("no individual alert has been sent yet")
	ErrNoGroupLink          = errors.New("no group link configured")
	ErrUnknownContact       = errors.New("unknown or empty contact slot")
	ErrUnknownChannel       = errors.New("unknown send channel")
	ErrDirectSmsDisabled    = errors.New("direct sms channel is not configured")
)

var activationVibratePattern = []time.Duration{
	500 * time.Millisecond, 200 * time.Millisecond,
	500 * time.Millisecond, 200 * time.Millisecond,
	500 * time.Millisecond,
}

// Advisor supplies supplementary safety guidance. It must always return
// text & never gate the dispatch flow.
type Advisor interface {
	Advise(ctx context.Context, locationText string) string
}

// Runner executes fire-and-forget work off the request path
type Runner interface {
	Perform(name string, fn func())
}

// Session is the ephemeral state of one panic activation, discarded on reset
type Session struct {
	State               string          `json:"state"`
	LastAction          string          `json:"lastAction,omitempty"`
	Message             string          `json:"message,omitempty"`
	SMSHandOff          string          `json:"smsHandOff,omitempty"`
	Advice              string          `json:"advice,omitempty"`
	Evidence            evidence.Set    `json:"evidence"`
	ContactsSent        map[string]bool `json:"contactsSent"`
	GroupSent           bool            `json:"groupSent"`
	HasSentIndividually bool            `json:"hasSentIndividually"`
	ActivatedAt         *time.Time      `json:"activatedAt,omitempty"`
}

// Outcome describes how one outbound send was handed off
type Outcome struct {
	Channel   string `json:"channel"`
	URI       string `json:"uri,omitempty"`
	Sent      bool   `json:"sent"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type Config struct {
	CountryCode       string
	IOSStyleSMS       bool
	InterCapturePause time.Duration
}

type Deps struct {
	Store    *settings.Store
	Tracker  *geo.Tracker
	Capturer *evidence.Capturer
	Advisor  Advisor
	Sharer   Sharer
	Opener   Opener
	Vibrator Vibrator
	Direct   DirectSender
	Runner   Runner
}

// Orchestrator drives the panic flow:
// idle -> capturing -> ready_to_send -> completed, with reset back to idle.
type Orchestrator struct {
	mu         sync.Mutex
	cfg        Config
	deps       Deps
	session    Session
	active     *settings.UserSettings
	generation int
	logg       *zap.SugaredLogger
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if cfg.InterCapturePause <= 0 {
		cfg.InterCapturePause = 300 * time.Millisecond
	}

	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		session: newIdleSession(),
		logg:    logger.NewLogger(),
	}
}

// Session returns a snapshot of the current activation state
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshot()
}

// Activate runs one panic activation up to ready_to_send: clear prior
// evidence, capture selfie then surroundings, compose the alert & hand the
// initial SMS off to the platform. Capture failures never abort the flow.
func (o *Orchestrator) Activate(ctx context.Context) (Session, error) {
	o.mu.Lock()
	if o.session.State == CAPTURING_STATE {
		defer o.mu.Unlock()
		return o.snapshot(), ErrActivationInProgress
	}

	userSettings, err := o.deps.Store.Load()
	if err != nil {
		defer o.mu.Unlock()
		return o.snapshot(), err
	}

	if !userSettings.HasRecipients() {
		// Rejected with a user-facing warning & no state change
		defer o.mu.Unlock()
		return o.snapshot(), ErrNoRecipients
	}

	o.generation++
	generation := o.generation
	o.active = userSettings

	now := time.Now()
	o.session = newIdleSession()
	o.session.State = CAPTURING_STATE
	o.session.LastAction = "Capturando fotos..."
	o.session.ActivatedAt = &now
	o.mu.Unlock()

	if o.deps.Vibrator != nil {
		o.deps.Vibrator.Vibrate(activationVibratePattern)
	}

	// Strictly sequential: most devices expose only one active camera
	// session at a time
	front := o.deps.Capturer.Capture(ctx, evidence.FacingFront)
	o.update(func(s *Session) {
		s.Evidence.Front = front
		s.LastAction = "Capturando ambiente..."
	})

	select {
	case <-time.After(o.cfg.InterCapturePause):
	case <-ctx.Done():
	}

	environment := o.deps.Capturer.Capture(ctx, evidence.FacingEnvironment)
	o.update(func(s *Session) {
		s.Evidence.Environment = environment
		s.LastAction = "Preparando SMS..."
	})

	sample := o.deps.Tracker.Current()
	text := message.Compose(userSettings, sample, front != nil || environment != nil)

	smsHandOff := o.initialSMSHandOff(userSettings, text)

	o.deps.Runner.Perform("fetch_safety_advice", func() {
		advice := o.deps.Advisor.Advise(context.Background(), sample.LatLongText())
		o.attachAdvice(generation, advice)
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.State = READY_TO_SEND_STATE
	o.session.LastAction = "Envie o SMS agora!"
	o.session.Message = text
	o.session.SMSHandOff = smsHandOff

	return o.snapshot(), nil
}

// SendToGroup broadcasts the alert to the configured group: rich share with
// attachments when the platform supports it, else the invite link with the
// text appended. Group success is a terminal success for the activation.
func (o *Orchestrator) SendToGroup(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	if o.session.State != READY_TO_SEND_STATE {
		o.mu.Unlock()
		return Outcome{}, ErrNotReady
	}

	groupLink := o.active.GroupLink
	text := o.session.Message
	attachments := o.session.Evidence.Images()
	o.mu.Unlock()

	if groupLink == "" {
		return Outcome{}, ErrNoGroupLink
	}

	if o.deps.Sharer != nil && o.deps.Sharer.CanShare(attachments) {
		err := o.deps.Sharer.Share(ctx, groupLink, text, attachments)
		if err == nil {
			o.completeGroupSend()
			return Outcome{Channel: RICH_SHARE_CHANNEL, Sent: true}, nil
		}

		if errors.Is(err, ErrShareCancelled) {
			return Outcome{Channel: RICH_SHARE_CHANNEL, Cancelled: true}, nil
		}

		o.logg.Infof("group rich share failed, falling back to invite link: %v", err)
	}

	uri := GroupBroadcastLink(groupLink, text)
	if err := o.deps.Opener.Open(uri); err != nil {
		return Outcome{}, errors.Wrap(err, "unable to open group link")
	}

	o.completeGroupSend()

	return Outcome{Channel: GROUP_LINK_CHANNEL, URI: uri, Sent: true}, nil
}

// SendToContact hands the alert off to one contact over the requested
// channel. Rich share falls back to the chat deep link on failure(but not
// on user cancellation); chat & sms open platform URIs; direct_sms sends
// through the configured sender.
func (o *Orchestrator) SendToContact(ctx context.Context, contactID, channel string) (Outcome, error) {
	o.mu.Lock()
	if o.session.State != READY_TO_SEND_STATE {
		o.mu.Unlock()
		return Outcome{}, ErrNotReady
	}

	contact := o.active.FindContact(contactID)
	text := o.session.Message
	attachments := o.session.Evidence.Images()
	o.mu.Unlock()

	if contact == nil || !contact.Valid() {
		return Outcome{}, ErrUnknownContact
	}

	if o.deps.Vibrator != nil {
		o.deps.Vibrator.Vibrate([]time.Duration{100 * time.Millisecond})
	}

	digits := NormalizePhone(contact.Phone, o.cfg.CountryCode)

	switch channel {
	case RICH_SHARE_CHANNEL:
		return o.richShareToContact(ctx, contactID, digits, text, attachments)

	case CHAT_CHANNEL:
		uri := ChatDeepLink(digits, text)
		if err := o.deps.Opener.Open(uri); err != nil {
			return Outcome{}, errors.Wrap(err, "unable to open chat deep link")
		}
		o.markContactSent(contactID)
		return Outcome{Channel: CHAT_CHANNEL, URI: uri, Sent: true}, nil

	case SMS_CHANNEL:
		uri := SMSLink([]string{digits}, text, o.cfg.IOSStyleSMS)
		if err := o.deps.Opener.Open(uri); err != nil {
			return Outcome{}, errors.Wrap(err, "unable to open sms link")
		}
		o.markContactSent(contactID)
		return Outcome{Channel: SMS_CHANNEL, URI: uri, Sent: true}, nil

	case DIRECT_SMS_CHANNEL:
		if o.deps.Direct == nil {
			return Outcome{}, ErrDirectSmsDisabled
		}
		if err := o.deps.Direct.SendMessage("+"+digits, text); err != nil {
			return Outcome{}, errors.Wrap(err, "direct sms failed")
		}
		o.markContactSent(contactID)
		return Outcome{Channel: DIRECT_SMS_CHANNEL, Sent: true}, nil
	}

	return Outcome{}, ErrUnknownChannel
}

// Conclude finishes an activation once at least one individual alert went out
func (o *Orchestrator) Conclude() (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.State != READY_TO_SEND_STATE {
		return o.snapshot(), ErrNotReady
	}

	if !o.session.HasSentIndividually {
		return o.snapshot(), ErrNothingSentYet
	}

	o.session.State = COMPLETED_STATE
	o.session.LastAction = "SOS Ativado!"

	return o.snapshot(), nil
}

// Reset discards the activation: evidence & progress labels are wiped and
// the flow returns to idle. Not permitted mid-capture - the capture timeout
// is the only cancellation there.
func (o *Orchestrator) Reset() (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.State == CAPTURING_STATE {
		return o.snapshot(), ErrActivationInProgress
	}

	o.generation++
	o.session = newIdleSession()
	o.active = nil

	return o.snapshot(), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func newIdleSession() Session {
	return Session{State: IDLE_STATE, ContactsSent: map[string]bool{}}
}

func (o *Orchestrator) richShareToContact(ctx context.Context, contactID, digits, text string, attachments []evidence.Image) (Outcome, error) {
	if o.deps.Sharer != nil && o.deps.Sharer.CanShare(attachments) {
		err := o.deps.Sharer.Share(ctx, digits, text, attachments)
		if err == nil {
			o.markContactSent(contactID)
			return Outcome{Channel: RICH_SHARE_CHANNEL, Sent: true}, nil
		}

		if errors.Is(err, ErrShareCancelled) {
			return Outcome{Channel: RICH_SHARE_CHANNEL, Cancelled: true}, nil
		}

		o.logg.Infof("rich share failed, falling back to chat deep link: %v", err)
	}

	uri := ChatDeepLink(digits, text)
	if err := o.deps.Opener.Open(uri); err != nil {
		return Outcome{}, errors.Wrap(err, "unable to open chat deep link")
	}
	o.markContactSent(contactID)

	return Outcome{Channel: CHAT_CHANNEL, URI: uri, Sent: true}, nil
}

// initialSMSHandOff builds & opens one sms: URI carrying the alert for all
// valid contacts at once. Invoking it hands control to the device messaging
// app; delivery is never confirmed.
func (o *Orchestrator) initialSMSHandOff(userSettings *settings.UserSettings, text string) string {
	validContacts := userSettings.ValidContacts()
	if len(validContacts) == 0 {
		return ""
	}

	digits := make([]string, 0, len(validContacts))
	for _, contact := range validContacts {
		digits = append(digits, NormalizePhone(contact.Phone, o.cfg.CountryCode))
	}

	uri := SMSLink(digits, text, o.cfg.IOSStyleSMS)
	if err := o.deps.Opener.Open(uri); err != nil {
		o.logg.Infof("sms hand-off failed: %v", err)
	}

	return uri
}

func (o *Orchestrator) completeGroupSend() {
	o.update(func(s *Session) {
		s.GroupSent = true
		s.State = COMPLETED_STATE
		s.LastAction = "SOS Ativado!"
	})
}

func (o *Orchestrator) markContactSent(contactID string) {
	o.update(func(s *Session) {
		s.ContactsSent[contactID] = true
		s.HasSentIndividually = true
	})
}

// attachAdvice lands the advisory text on the session, unless the
// activation it was fetched for is no longer current.
func (o *Orchestrator) attachAdvice(generation int, advice string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if generation != o.generation {
		return
	}

	o.session.Advice = advice
}

func (o *Orchestrator) update(fn func(*Session)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fn(&o.session)
}

func (o *Orchestrator) snapshot() Session {
	snapshot := o.session

	snapshot.ContactsSent = make(map[string]bool, len(o.session.ContactsSent))
	for id, sent := range o.session.ContactsSent {
		snapshot.ContactsSent[id] = sent
	}

	return snapshot
}
