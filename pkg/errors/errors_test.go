package benome_errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("create message", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestPersistencePassesClassifiedErrorsThrough(t *testing.T) {
	err := Persistence("lookup", ErrNotFound)
	assert.Same(t, ErrNotFound, err)

	wrapped := fmt.Errorf("get conversation: %w", Validation("bad id"))
	assert.Equal(t, wrapped, Persistence("lookup", wrapped))

	assert.Nil(t, Persistence("noop", nil))
}

func TestCode(t *testing.T) {
	cases := map[string]error{
		"UNAUTHORIZED":      Authentication(errors.New("expired")),
		"NOT_AUTHORIZED":    NotAuthorized("not a participant"),
		"VALIDATION_ERROR":  Validation("content is required"),
		"NOT_FOUND":         ErrNotFound,
		"CONFLICT":          fmt.Errorf("insert: %w", ErrConflict),
		"RATE_LIMITED":      ErrRateLimited,
		"PERSISTENCE_ERROR": Persistence("insert", errors.New("boom")),
		"INTERNAL_ERROR":    errors.New("unknown"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Code(err), err.Error())
	}
	assert.Empty(t, Code(nil))
}

func TestMessageHidesCauses(t *testing.T) {
	assert.Equal(t, "content is required", Message(Validation("content is required")))
	assert.Equal(t, "failed to save changes", Message(Persistence("insert", errors.New("pq: deadlock detected"))))
	assert.Equal(t, "internal error", Message(errors.New("secret detail")))
	assert.Equal(t, ErrNotFound.Error(), Message(ErrNotFound))
}
