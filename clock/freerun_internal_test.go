package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickStateArmsOnlyOnChange(t *testing.T) {
	var s tickState
	assert.False(t, s.armed)

	assert.True(t, s.arm(120), "unarmed -> armed")
	assert.False(t, s.arm(120), "same rate keeps schedule")
	assert.True(t, s.arm(120.5), "changed rate re-arms")
	assert.Equal(t, 120.5, s.bpm)
	assert.False(t, s.arm(120.5))
}
