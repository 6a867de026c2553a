package uuidx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
	assert.NotEqual(t, id, New())
}

func TestNewString(t *testing.T) {
	id, err := uuid.Parse(NewString())
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestCallID(t *testing.T) {
	id := CallID()
	assert.True(t, strings.HasPrefix(id, "call_"))
	assert.NotContains(t, id, "-")
	assert.Len(t, id, len("call_")+32)
}
