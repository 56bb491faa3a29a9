package lobby

import "math/rand"

const (
	clientIDLength = 8
	gameIDLength   = 8
	tokenLength    = 16

	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// randomID returns an opaque identifier of n characters drawn from the
// uppercase alphanumeric alphabet. IDs are session handles, not secrets.
func randomID(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}
