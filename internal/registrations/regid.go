package registrations

import (
	"crypto/rand"
	"fmt"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewRegistrationCode generates a human-facing registration ID of the form
// WEB-<epoch millis>-<9 random base36 chars>, e.g. WEB-1735689600000-4K7Q2M9XA.
func NewRegistrationCode() string {
	return fmt.Sprintf("WEB-%d-%s", time.Now().UnixMilli(), randBase36(9))
}

func randBase36(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = base36[int(v)%len(base36)]
	}
	return string(out)
}
