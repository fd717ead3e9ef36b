package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"sosguard/server/evidence"
)

const chatDomain = "wa.me"

var (
	// ErrShareCancelled means the user backed out of the native share
	// sheet - no automatic fallback in that case
	ErrShareCancelled = errors.New("share cancelled by user")

	// ErrShareUnsupported means the platform cannot share this
	// attachment set
	ErrShareUnsupported = errors.New("sharing not supported for attachment set")
)

// Sharer is the platform native-share capability(rich share: text plus
// file attachments to an arbitrary target app).
type Sharer interface {
	CanShare(attachments []evidence.Image) bool
	Share(ctx context.Context, target, text string, attachments []evidence.Image) error
}

// Opener hands a URI off to the platform(messaging app, browser). It never
// confirms delivery.
type Opener interface {
	Open(uri string) error
}

// Vibrator is best-effort haptic feedback, ignored where unsupported
type Vibrator interface {
	Vibrate(pattern []time.Duration)
}

// DirectSender is an optional channel that sends the SMS itself instead of
// handing off to the device messaging app e.g. a twilio-backed sender.
type DirectSender interface {
	SendMessage(to, msg string) error
}

// ---------------------------------------------------------------------------------//
// Outbound URI builders
// --------------------------------------------------------------------------------//

// SMSLink builds the sms: URI for the given recipients. iOS uses '&' as the
// query separator, everything else uses '?'.
func SMSLink(digits []string, body string, iosStyle bool) string {
	separator := "?"
	if iosStyle {
		separator = "&"
	}

	return fmt.Sprintf("sms:%v%vbody=%v", strings.Join(digits, ","), separator, url.QueryEscape(body))
}

// ChatDeepLink builds the web deep link to a contact's chat. Deep links
// carry text only, never attachments.
func ChatDeepLink(digits, text string) string {
	return fmt.Sprintf("https://%v/%v?text=%v", chatDomain, digits, url.QueryEscape(text))
}

// ChatAppLink builds the app-scheme variant of the chat deep link
func ChatAppLink(digits, text string) string {
	return fmt.Sprintf("whatsapp://send?phone=%v&text=%v", digits, url.QueryEscape(text))
}

// GroupBroadcastLink appends the alert text to the configured group invite
// URL, respecting any query string it already has.
func GroupBroadcastLink(groupLink, text string) string {
	separator := "?"
	if strings.Contains(groupLink, "?") {
		separator = "&"
	}

	return groupLink + separator + "text=" + url.QueryEscape(text)
}
