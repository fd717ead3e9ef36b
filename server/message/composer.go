package message

import (
	"fmt"
	"strings"

	"sosguard/server/geo"
	"sosguard/server/settings"
)

const (
	alertHeader = "🚨 SOS GUARD - EMERGÊNCIA 🚨"

	evidenceNote = "📸 EVIDÊNCIA: Fotos capturadas no local."

	// LocationUnavailable is the literal marker used when there is no fix
	LocationUnavailable = "Localização não obtida"
)

// MapsURL builds a map link for the sample coordinates. 6 decimal places
// keep the link useful down to ~10cm.
func MapsURL(sample geo.Sample) string {
	if !sample.HasFix() {
		return LocationUnavailable
	}

	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", *sample.Latitude, *sample.Longitude)
}

// Compose assembles the emergency text. Pure given its three inputs:
// header, the user's alert message, one line per non-empty profile field in
// fixed order, an evidence note when a photo was captured & the location
// block. Nothing is ever truncated.
func Compose(userSettings *settings.UserSettings, sample geo.Sample, evidencePresent bool) string {
	sb := strings.Builder{}

	sb.WriteString(alertHeader)
	sb.WriteString("\n\n")
	sb.WriteString(userSettings.Message)
	sb.WriteString("\n")

	writeLineIfPresent(&sb, "👤 Nome", userSettings.UserName)
	writeLineIfPresent(&sb, "🩸 Sangue", userSettings.BloodType)
	writeLineIfPresent(&sb, "❤️ Doador", userSettings.IsOrganDonor)
	writeLineIfPresent(&sb, "⚠️ Alergias", userSettings.Allergies)
	writeLineIfPresent(&sb, "💊 Remédio Contínuo", userSettings.Medications)

	if evidencePresent {
		sb.WriteString("\n")
		sb.WriteString(evidenceNote)
	}

	sb.WriteString("\n\n📍 LOCALIZAÇÃO:\n")
	sb.WriteString(MapsURL(sample))

	return sb.String()
}

func writeLineIfPresent(sb *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(value)
}
