package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLimiter_Burst(t *testing.T) {
	l := NewUserLimiter(1, 2)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("U1"))
	assert.True(t, l.Allow("U1"))
	assert.False(t, l.Allow("U1"))
	assert.True(t, l.Allow("U2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("U1"), "token refills after a second")
}

func TestUserLimiter_Disabled(t *testing.T) {
	l := NewUserLimiter(0, 0)
	for range 100 {
		assert.True(t, l.Allow("U1"))
	}

	var nilLimiter *UserLimiter
	assert.True(t, nilLimiter.Allow("U1"))
}

func TestUserLimiter_SweepsIdle(t *testing.T) {
	l := NewUserLimiter(1, 1)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("U1")
	l.Allow("U2")
	assert.Equal(t, 2, l.Len())

	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow("U3")
	assert.Equal(t, 1, l.Len())
}
