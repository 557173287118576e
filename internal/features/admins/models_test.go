package admins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangesEmpty(t *testing.T) {
	name := "Administrator"
	super := true

	assert.True(t, Changes{}.Empty())
	assert.False(t, Changes{Name: &name}.Empty())
	assert.False(t, Changes{IsSuperAdmin: &super}.Empty())
}
