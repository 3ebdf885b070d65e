package test

import (
	"fmt"
	"math/rand/v2"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns n random alphanumeric characters.
func RandomString(n int) string {
	buf := make([]byte, max(n, 1))
	for i := range buf {
		buf[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(buf)
}

// RandomEmail returns an address unlikely to collide with other test users.
func RandomEmail() string {
	return fmt.Sprintf("%s@%s.example.com", RandomString(6+rand.IntN(8)), RandomString(5))
}

// RandomPassword returns a password between 12 and 31 characters long.
func RandomPassword() string {
	return RandomString(12 + rand.IntN(20))
}

// RandomPhone returns a Ghanaian mobile number in international form.
func RandomPhone() string {
	prefixes := []string{"24", "54", "55", "20", "50", "27"}
	return fmt.Sprintf("+233%s%07d", prefixes[rand.IntN(len(prefixes))], rand.IntN(10_000_000))
}
