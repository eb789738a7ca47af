package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, true)
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 10*time.Second, b.Next()) // capped
}

func TestBackoffConstantWhenNotExponential(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, false)
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffResetRestartsSequence(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, true)
	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}
