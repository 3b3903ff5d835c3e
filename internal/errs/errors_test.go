package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	assert.NoError(t, v.OrNil())

	v.Add("content", "must be at least 10 characters")
	v.Add("type", "is not supported")

	err := v.OrNil()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "content: must be at least 10 characters")

	var fields ValidationErrors
	assert.True(t, errors.As(err, &fields))
	assert.Len(t, fields, 2)
}

func TestProviderError(t *testing.T) {
	last := errors.New("503 service unavailable")
	err := error(&ProviderError{Attempts: 3, Last: last})

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, "provider unavailable after 3 attempts: 503 service unavailable", err.Error())
}

func TestPersistence(t *testing.T) {
	assert.NoError(t, Persistence(nil))

	cause := errors.New("UNIQUE constraint failed: tags.name")
	err := Persistence(cause)

	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
}
