package apperrors_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/apperrors"
)

func TestHTTPStatusMapsEveryKind(t *testing.T) {
	cases := []struct {
		kind apperrors.Kind
		want int
	}{
		{apperrors.KindValidation, http.StatusBadRequest},
		{apperrors.KindAuth, http.StatusUnauthorized},
		{apperrors.KindLimitExceeded, http.StatusForbidden},
		{apperrors.KindNotConnected, http.StatusInternalServerError},
		{apperrors.KindTransient, http.StatusServiceUnavailable},
		{apperrors.KindFatal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := apperrors.New(tc.kind, "boom")
		assert.Equal(t, tc.want, err.HTTPStatus())
	}
}

func TestRetryableOnlyForTransient(t *testing.T) {
	assert.True(t, apperrors.Transient("retry me").Retryable())
	assert.False(t, apperrors.Fatal("do not retry").Retryable())
	assert.False(t, apperrors.Validation("bad input").Retryable())
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := apperrors.TransientWrap(cause, "sending to %s", "example.com")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "timeout")
}

func TestIsUnwrapsPlainAndLimitExceededErrors(t *testing.T) {
	plain := apperrors.NotConnected("sess-1")
	assert.True(t, apperrors.Is(plain, apperrors.KindNotConnected))
	assert.False(t, apperrors.Is(plain, apperrors.KindFatal))

	limited := apperrors.LimitExceeded("too many", 5, 5)
	assert.True(t, apperrors.Is(limited, apperrors.KindLimitExceeded))

	assert.False(t, apperrors.Is(errors.New("unrelated"), apperrors.KindFatal))
}

func TestClassifyWrapsUnrecognizedErrorsAsFatal(t *testing.T) {
	assert.Nil(t, apperrors.Classify(nil))

	raw := errors.New("something the gateway didn't expect")
	classified := apperrors.Classify(raw)
	require.NotNil(t, classified)
	assert.Equal(t, apperrors.KindFatal, classified.Kind)
	assert.ErrorIs(t, classified, raw)

	already := apperrors.Validation("bad")
	assert.Same(t, already, apperrors.Classify(already))
}

func TestWithContextAttachesFields(t *testing.T) {
	err := apperrors.NotConnected("sess-42")
	assert.Equal(t, "sess-42", err.Context["session_id"])

	err.WithContext("extra", 7)
	assert.Equal(t, 7, err.Context["extra"])
}
