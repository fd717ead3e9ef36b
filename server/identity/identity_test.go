package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"sosguard/server/models"
)

func newTestProvider() *Provider {
	provider := NewProvider("test-session-secret")
	provider.delay = 0

	return provider
}

func TestLogInCreatesDeviceLocalAccount(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	session, err := provider.LogIn(context.Background(), "Ana", "ana@example.com", "very-secure")
	assert.Nil(t, err)
	assert.Equal(t, "Ana", session.User.Name)
	assert.Equal(t, "ana@example.com", session.User.Email)
	assert.NotEmpty(t, session.User.ID)
	assert.NotEmpty(t, session.Token)

	restored, err := provider.Restore()
	assert.Nil(t, err)
	assert.NotNil(t, restored)
	assert.Equal(t, session.User.ID, restored.User.ID)

	user, err := provider.Verify(session.Token)
	assert.Nil(t, err)
	assert.Equal(t, session.User.ID, user.ID)
}

func TestLogInRejectsWrongPassword(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	_, err := provider.LogIn(context.Background(), "Ana", "ana@example.com", "very-secure")
	assert.Nil(t, err)

	_, err = provider.LogIn(context.Background(), "Ana", "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogInRejectsEmptyCredentials(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	_, err := provider.LogIn(context.Background(), "Ana", "", "very-secure")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = provider.LogIn(context.Background(), "Ana", "ana@example.com", "  ")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRestoreWhenLoggedOut(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	session, err := provider.Restore()
	assert.Nil(t, err)
	assert.Nil(t, session, "absence of the session record means logged out")
}

func TestRestoreDiscardsMalformedSessionRecord(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	assert.Nil(t, models.UpsertRecord(SessionStorageKey, "{not-json"))

	session, err := provider.Restore()
	assert.Nil(t, err)
	assert.Nil(t, session)
}

func TestLogOut(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	_, err := provider.LogIn(context.Background(), "Ana", "ana@example.com", "very-secure")
	assert.Nil(t, err)

	assert.Nil(t, provider.LogOut())

	session, err := provider.Restore()
	assert.Nil(t, err)
	assert.Nil(t, session)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	models.InitializeTestDb()
	provider := newTestProvider()

	session, err := provider.LogIn(context.Background(), "Ana", "ana@example.com", "very-secure")
	assert.Nil(t, err)

	otherProvider := NewProvider("another-secret")
	otherProvider.delay = 0

	_, err = otherProvider.Verify(session.Token)
	assert.NotNil(t, err)
}
