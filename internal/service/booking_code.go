package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewBookingCode generates a human-shareable booking code of the form
// BK-20260830143015-4FA2C1: a UTC timestamp plus a random hex suffix.
// The timestamp keeps codes roughly sortable and human-readable; the
// random suffix makes collisions between bookings created in the same
// second vanishingly unlikely.  Inserts still treat a duplicate code
// as retryable, so the generator does not need to be perfect.
func NewBookingCode() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the clock so the insert-time uniqueness check
		// remains the backstop.
		return fmt.Sprintf("BK-%s-%06d", time.Now().UTC().Format("20060102150405"), time.Now().Nanosecond()%1000000)
	}
	return fmt.Sprintf("BK-%s-%s", time.Now().UTC().Format("20060102150405"), strings.ToUpper(hex.EncodeToString(buf)))
}
