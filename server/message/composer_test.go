package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sosguard/server/geo"
	"sosguard/server/settings"
)

func sampleWithFix() geo.Sample {
	lat, lon, acc := -23.55052, -46.633308, 12.0
	ts := time.Now()

	return geo.Sample{Latitude: &lat, Longitude: &lon, Accuracy: &acc, Timestamp: &ts}
}

func TestComposeWithFullProfileAndEvidence(t *testing.T) {
	userSettings := settings.Defaults()
	userSettings.UserName = "Ana"
	userSettings.BloodType = "O+"
	userSettings.IsOrganDonor = "Sim"
	userSettings.Allergies = "Dipirona"
	userSettings.Medications = "Insulina"
	userSettings.Message = "Socorro!"

	expected := "🚨 SOS GUARD - EMERGÊNCIA 🚨\n\n" +
		"Socorro!\n\n" +
		"👤 Nome: Ana\n" +
		"🩸 Sangue: O+\n" +
		"❤️ Doador: Sim\n" +
		"⚠️ Alergias: Dipirona\n" +
		"💊 Remédio Contínuo: Insulina\n" +
		"📸 EVIDÊNCIA: Fotos capturadas no local.\n\n" +
		"📍 LOCALIZAÇÃO:\n" +
		"https://www.google.com/maps?q=-23.550520,-46.633308"

	assert.Equal(t, expected, Compose(userSettings, sampleWithFix(), true))
}

func TestComposeSkipsEmptyProfileFields(t *testing.T) {
	userSettings := settings.Defaults()

	text := Compose(userSettings, geo.Sample{}, false)

	assert.Contains(t, text, settings.DefaultAlertMessage)
	assert.Contains(t, text, LocationUnavailable)
	assert.NotContains(t, text, "👤 Nome")
	assert.NotContains(t, text, "🩸 Sangue")
	assert.NotContains(t, text, "❤️ Doador")
	assert.NotContains(t, text, "⚠️ Alergias")
	assert.NotContains(t, text, "💊 Remédio Contínuo")
	assert.NotContains(t, text, "📸 EVIDÊNCIA")
	assert.NotContains(t, text, "null")
	assert.NotContains(t, text, "<nil>")
}

func TestComposeIsDeterministic(t *testing.T) {
	userSettings := settings.Defaults()
	userSettings.UserName = "Ana"
	sample := sampleWithFix()

	assert.Equal(t, Compose(userSettings, sample, true), Compose(userSettings, sample, true))
}

func TestMapsURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps?q=-23.550520,-46.633308", MapsURL(sampleWithFix()))
	assert.Equal(t, LocationUnavailable, MapsURL(geo.Sample{}))
}
