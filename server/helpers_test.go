package server

import (
	"net/http"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"

	"sosguard/server/dispatch"
)

func TestPhoneNumberValidator(t *testing.T) {
	v := validator.New()
	assert.Nil(t, RegisterValidators(v))

	validNumbers := []string{
		"11987654321",
		"+55 11 98765-4321",
		"(11) 98765-4321",
		"12345678",
	}
	for _, number := range validNumbers {
		assert.Nil(t, v.Var(number, "phone_number"), "expected %q to be valid", number)
	}

	invalidNumbers := []string{
		"",
		"911",
		"1234567",
		"1234567890123456",
		"abc",
	}
	for _, number := range invalidNumbers {
		assert.NotNil(t, v.Var(number, "phone_number"), "expected %q to be invalid", number)
	}
}

func TestDispatchStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, dispatchStatusCode(dispatch.ErrActivationInProgress))
	assert.Equal(t, http.StatusNotFound, dispatchStatusCode(dispatch.ErrUnknownContact))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrNoRecipients))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrNotReady))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrNothingSentYet))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrNoGroupLink))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrUnknownChannel))
	assert.Equal(t, http.StatusBadRequest, dispatchStatusCode(dispatch.ErrDirectSmsDisabled))
	assert.Equal(t, http.StatusInternalServerError, dispatchStatusCode(assert.AnError))
}

func TestBoolConfigValue(t *testing.T) {
	assert.True(t, boolConfigValue(true))
	assert.False(t, boolConfigValue(false))
	assert.False(t, boolConfigValue(nil))
	assert.False(t, boolConfigValue("true"))
}
