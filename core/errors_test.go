package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	errTaken := errors.New("a course with this code already exists")

	err := NewFieldError("code", errTaken)
	assert.EqualError(t, err, errTaken.Error())

	var vErr *ValidationError
	if assert.True(t, errors.As(errors.Wrap(err, "creating course"), &vErr)) {
		assert.Equal(t, map[string]string{"code": errTaken.Error()}, vErr.FieldMap())
	}
	assert.ErrorIs(t, err, errTaken)

	bare := NewValidationError(errTaken).(*ValidationError)
	assert.Nil(t, bare.FieldMap())

	multi := ValidationError{Fields: []FieldError{{"uid", "invalid value"}, {"token", "invalid value"}}}
	assert.Equal(t, map[string]string{"uid": "invalid value", "token": "invalid value"}, multi.FieldMap())
	assert.Empty(t, multi.Error())
}

func TestIsShutdown(t *testing.T) {
	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity issue"), "serving")))
	assert.False(t, IsShutdown(errors.New("integrity issue")))
}
