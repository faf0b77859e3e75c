package gormstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"wa-gateway/internal/store"
)

func TestClassifyPassesNilThrough(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassifyMapsRecordNotFoundToErrNotFound(t *testing.T) {
	err := classify(gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClassifyMapsUniqueViolationToErrDuplicateMessage(t *testing.T) {
	err := classify(errors.New(`ERROR: duplicate key value violates unique constraint "messages_session_id_message_id_key"`))
	assert.ErrorIs(t, err, store.ErrDuplicateMessage)
}

func TestClassifyPassesThroughUnrecognizedErrors(t *testing.T) {
	original := errors.New("connection refused")
	assert.Equal(t, original, classify(original))
}

func TestIsUniqueViolationDetectsEitherPhrasing(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("duplicate key value exists")))
	assert.True(t, isUniqueViolation(errors.New(`violates unique constraint "x"`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
