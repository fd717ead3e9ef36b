package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"sosguard/server/advisory"
	"sosguard/server/evidence"
	"sosguard/server/geo"
	"sosguard/server/models"
	"sosguard/server/platform"
	"sosguard/server/settings"
	"sosguard/utils"
)

// syncRunner keeps the advisory fetch on the calling goroutine, so tests
// never race it
type syncRunner struct{}

func (syncRunner) Perform(name string, fn func()) { fn() }

type fixture struct {
	store        *settings.Store
	camera       *platform.SimCamera
	sharer       *platform.SimSharer
	opener       *platform.LogOpener
	vibrator     *platform.SimVibrator
	advisor      *advisory.AdvisorStub
	orchestrator *Orchestrator
}

func newFixture(direct DirectSender) *fixture {
	models.InitializeTestDb()

	validate := validator.New()
	validate.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		digits := utils.DigitsOnly(fl.Field().String())
		return len(digits) >= 8 && len(digits) <= 15
	})

	f := &fixture{
		store:    settings.NewStore(validate),
		camera:   platform.NewSimCamera(),
		sharer:   &platform.SimSharer{},
		opener:   &platform.LogOpener{},
		vibrator: &platform.SimVibrator{},
		advisor:  &advisory.AdvisorStub{Advice: "Fique em local iluminado."},
	}

	f.orchestrator = NewOrchestrator(
		Config{CountryCode: "55", InterCapturePause: time.Millisecond},
		Deps{
			Store:    f.store,
			Tracker:  geo.NewTracker(),
			Capturer: evidence.NewCapturer(f.camera, evidence.Options{Timeout: 2 * time.Second, SettleDelay: time.Millisecond}),
			Advisor:  f.advisor,
			Sharer:   f.sharer,
			Opener:   f.opener,
			Vibrator: f.vibrator,
			Direct:   direct,
			Runner:   syncRunner{},
		},
	)

	return f
}

func (f *fixture) saveSettings(t *testing.T, groupLink string) *settings.UserSettings {
	userSettings := settings.Defaults()
	userSettings.UserName = "Ana"
	userSettings.Contacts[0].Name = "Bia"
	userSettings.Contacts[0].Phone = "11987654321"
	userSettings.GroupLink = groupLink

	assert.Nil(t, f.store.Save(userSettings))

	return userSettings
}

func TestActivateWithoutRecipients(t *testing.T) {
	f := newFixture(nil)

	session, err := f.orchestrator.Activate(context.Background())

	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Equal(t, IDLE_STATE, session.State, "a rejected activation must not change state")
	assert.Empty(t, f.opener.Opened)
}

func TestActivateHappyPath(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "")

	session, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	assert.Equal(t, READY_TO_SEND_STATE, session.State)
	assert.Equal(t, "Envie o SMS agora!", session.LastAction)
	assert.NotNil(t, session.ActivatedAt)

	assert.NotNil(t, session.Evidence.Front)
	assert.NotNil(t, session.Evidence.Environment)
	assert.Contains(t, session.Message, "🚨 SOS GUARD - EMERGÊNCIA 🚨")
	assert.Contains(t, session.Message, "📸 EVIDÊNCIA")

	// The initial hand-off targets every valid contact at once
	assert.True(t, strings.HasPrefix(session.SMSHandOff, "sms:5511987654321"))
	assert.Equal(t, session.SMSHandOff, f.opener.LastOpened())

	assert.Equal(t, "Fique em local iluminado.", session.Advice)
	assert.Len(t, f.advisor.Calls, 1)
	assert.NotEmpty(t, f.vibrator.Patterns)

	// Every camera stream handed out was released
	for _, stream := range f.camera.Streams() {
		assert.True(t, stream.Stopped())
	}
}

func TestActivateContinuesWithoutCamera(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "")
	f.camera.Deny[evidence.FacingFront] = true
	f.camera.Deny[evidence.FacingEnvironment] = true

	session, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	assert.Equal(t, READY_TO_SEND_STATE, session.State)
	assert.Nil(t, session.Evidence.Front)
	assert.Nil(t, session.Evidence.Environment)
	assert.NotContains(t, session.Message, "📸 EVIDÊNCIA")
	assert.NotEmpty(t, session.SMSHandOff)
}

func TestActivateWhileCapturing(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "")
	f.camera.OpenDelay = 300 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.orchestrator.Activate(context.Background())
	}()

	assert.Eventually(t, func() bool {
		return f.orchestrator.Session().State == CAPTURING_STATE
	}, time.Second, 5*time.Millisecond)

	_, err := f.orchestrator.Activate(context.Background())
	assert.ErrorIs(t, err, ErrActivationInProgress)

	// Reset is not permitted mid-capture either
	_, err = f.orchestrator.Reset()
	assert.ErrorIs(t, err, ErrActivationInProgress)

	<-done
}

func TestSendToGroupRichShare(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "https://chat.whatsapp.com/abc123")
	f.sharer.Supported = true

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	outcome, err := f.orchestrator.SendToGroup(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, Outcome{Channel: RICH_SHARE_CHANNEL, Sent: true}, outcome)

	assert.Len(t, f.sharer.Shares, 1)
	assert.Equal(t, "https://chat.whatsapp.com/abc123", f.sharer.Shares[0].Target)
	assert.Equal(t, 2, f.sharer.Shares[0].Attachments)

	// Group success is terminal for the activation
	session := f.orchestrator.Session()
	assert.Equal(t, COMPLETED_STATE, session.State)
	assert.True(t, session.GroupSent)
	assert.Equal(t, "SOS Ativado!", session.LastAction)
}

func TestSendToGroupShareCancelled(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "https://chat.whatsapp.com/abc123")
	f.sharer.Supported = true
	f.sharer.Err = ErrShareCancelled

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)
	handOff := f.opener.LastOpened()

	outcome, err := f.orchestrator.SendToGroup(context.Background())
	assert.Nil(t, err)
	assert.True(t, outcome.Cancelled)

	// No automatic fallback after a user cancellation
	assert.Equal(t, handOff, f.opener.LastOpened())
	assert.Equal(t, READY_TO_SEND_STATE, f.orchestrator.Session().State)
}

func TestSendToGroupFallsBackToInviteLink(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "https://chat.whatsapp.com/abc123")
	f.sharer.Supported = true
	f.sharer.Err = errors.New("share sheet crashed")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	outcome, err := f.orchestrator.SendToGroup(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, GROUP_LINK_CHANNEL, outcome.Channel)
	assert.True(t, strings.HasPrefix(outcome.URI, "https://chat.whatsapp.com/abc123?text="))
	assert.Equal(t, outcome.URI, f.opener.LastOpened())
	assert.Equal(t, COMPLETED_STATE, f.orchestrator.Session().State)
}

func TestSendToGroupWithoutLink(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	_, err = f.orchestrator.SendToGroup(context.Background())
	assert.ErrorIs(t, err, ErrNoGroupLink)
}

func TestSendToContactAndConclude(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")
	contactID := userSettings.Contacts[0].ID

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	// Conclude needs at least one individual send first
	_, err = f.orchestrator.Conclude()
	assert.ErrorIs(t, err, ErrNothingSentYet)

	outcome, err := f.orchestrator.SendToContact(context.Background(), contactID, SMS_CHANNEL)
	assert.Nil(t, err)
	assert.Equal(t, SMS_CHANNEL, outcome.Channel)
	assert.True(t, strings.HasPrefix(outcome.URI, "sms:5511987654321?body="))
	assert.True(t, f.orchestrator.Session().ContactsSent[contactID])

	session, err := f.orchestrator.Conclude()
	assert.Nil(t, err)
	assert.Equal(t, COMPLETED_STATE, session.State)
	assert.Equal(t, "SOS Ativado!", session.LastAction)
}

func TestSendToContactChatChannel(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	outcome, err := f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, CHAT_CHANNEL)
	assert.Nil(t, err)
	assert.Equal(t, CHAT_CHANNEL, outcome.Channel)
	assert.True(t, strings.HasPrefix(outcome.URI, "https://wa.me/5511987654321?text="))
}

func TestSendToContactRichShareFallsBackToChat(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")
	f.sharer.Supported = false

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	outcome, err := f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, RICH_SHARE_CHANNEL)
	assert.Nil(t, err)
	assert.Equal(t, CHAT_CHANNEL, outcome.Channel)
	assert.True(t, strings.HasPrefix(outcome.URI, "https://wa.me/5511987654321"))
}

func TestSendToContactUnknown(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	_, err = f.orchestrator.SendToContact(context.Background(), "no-such-slot", SMS_CHANNEL)
	assert.ErrorIs(t, err, ErrUnknownContact)
}

func TestSendToContactUnknownChannel(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	_, err = f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, "carrier_pigeon")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestSendToContactDirectSmsDisabled(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	_, err = f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, DIRECT_SMS_CHANNEL)
	assert.ErrorIs(t, err, ErrDirectSmsDisabled)
}

type recordingSender struct {
	to  string
	msg string
}

func (s *recordingSender) SendMessage(to, msg string) error {
	s.to, s.msg = to, msg
	return nil
}

func TestSendToContactDirectSms(t *testing.T) {
	sender := &recordingSender{}
	f := newFixture(sender)
	userSettings := f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	outcome, err := f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, DIRECT_SMS_CHANNEL)
	assert.Nil(t, err)
	assert.Equal(t, DIRECT_SMS_CHANNEL, outcome.Channel)
	assert.Equal(t, "+5511987654321", sender.to)
	assert.Contains(t, sender.msg, "🚨 SOS GUARD - EMERGÊNCIA 🚨")
}

func TestSendBeforeActivation(t *testing.T) {
	f := newFixture(nil)
	f.saveSettings(t, "https://chat.whatsapp.com/abc123")

	_, err := f.orchestrator.SendToGroup(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = f.orchestrator.SendToContact(context.Background(), "any", SMS_CHANNEL)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = f.orchestrator.Conclude()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestResetDiscardsActivation(t *testing.T) {
	f := newFixture(nil)
	userSettings := f.saveSettings(t, "")

	_, err := f.orchestrator.Activate(context.Background())
	assert.Nil(t, err)

	_, err = f.orchestrator.SendToContact(context.Background(), userSettings.Contacts[0].ID, SMS_CHANNEL)
	assert.Nil(t, err)

	session, err := f.orchestrator.Reset()
	assert.Nil(t, err)

	assert.Equal(t, IDLE_STATE, session.State)
	assert.Empty(t, session.Message)
	assert.Empty(t, session.Advice)
	assert.Empty(t, session.ContactsSent)
	assert.Nil(t, session.Evidence.Front)
	assert.Nil(t, session.Evidence.Environment)
	assert.False(t, session.HasSentIndividually)
	assert.Nil(t, session.ActivatedAt)
}
