package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wa-gateway/internal/models"
)

func TestValidSessionID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"my-session_1", true},
		{"", false},
		{"has a space", false},
		{"slash/not/allowed", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, models.ValidSessionID(tc.id), tc.id)
	}

	over100 := make([]byte, 101)
	for i := range over100 {
		over100[i] = 'a'
	}
	assert.False(t, models.ValidSessionID(string(over100)))
}

func TestSessionLifecycleTransitions(t *testing.T) {
	s := &models.Session{Status: models.SessionConnecting}

	s.SetConnected("15551234567")
	require := assert.New(t)
	require.Equal(models.SessionConnected, s.Status)
	require.Equal("15551234567", *s.PhoneNumber)
	require.Nil(s.ErrorMessage)
	require.Equal(0, s.ReconnectAttempts)

	s.ReconnectAttempts = 3
	s.SetError("max attempts exceeded", 5)
	require.Equal(models.SessionError, s.Status)
	require.Equal(5, s.ReconnectAttempts) // bumped up to the cap
	require.False(s.IsActive())
	require.False(s.IsRestorable())

	s.SetConnecting()
	require.Equal(models.SessionConnecting, s.Status)
	require.Nil(s.ErrorMessage)
}

func TestSetErrorNeverLowersReconnectAttempts(t *testing.T) {
	s := &models.Session{ReconnectAttempts: 7}
	s.SetError("boom", 5)
	assert.Equal(t, 7, s.ReconnectAttempts)
}

func TestIsRestorableRequiresAuthStateAndLiveStatus(t *testing.T) {
	s := &models.Session{Status: models.SessionConnected}
	assert.False(t, s.IsRestorable())

	s.AuthState = []byte("blob")
	assert.True(t, s.IsRestorable())

	s.Status = models.SessionDisconnected
	assert.False(t, s.IsRestorable())

	s.Status = models.SessionError
	assert.False(t, s.IsRestorable())
}
