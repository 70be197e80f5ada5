package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("detect")
	assert.Equal(t, "detect", timer.Name())

	time.Sleep(5 * time.Millisecond)
	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, timer.Duration())
	assert.Contains(t, timer.String(), "detect: ")

	assert.Empty(t, NewTimer().Name())
}

func TestMeasure(t *testing.T) {
	boom := errors.New("boom")
	d, err := Measure("step", func() error {
		time.Sleep(time.Millisecond)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, d, time.Millisecond)
}

func TestGetRuntimeStats(t *testing.T) {
	s := GetRuntimeStats()
	assert.Positive(t, s.SysBytes)
	assert.Positive(t, s.Goroutines)
	assert.Contains(t, s.String(), "goroutines")
}
