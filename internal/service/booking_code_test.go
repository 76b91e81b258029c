package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBookingCodeFormat(t *testing.T) {
	code := NewBookingCode()
	assert.Regexp(t, `^BK-\d{14}-[0-9A-F]{6}$`, code)
}

func TestNewBookingCodeUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := NewBookingCode()
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
