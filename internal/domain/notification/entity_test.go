package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeValid(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Valid(), typ)
	}
	assert.Len(t, Types, 12)
	assert.False(t, Type("NEW_FRIEND").Valid())
	assert.False(t, Type("new_message").Valid())
	assert.False(t, Type("").Valid())
}
