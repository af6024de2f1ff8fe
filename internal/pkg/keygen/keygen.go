package keygen

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"
)

// alphabet is base36 (0-9, a-z).
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SuffixLength is the length of the random part of generated keys.
const SuffixLength = 9

// RandomSuffix returns a cryptographically random base36 string.
func RandomSuffix(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid suffix length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 252 is the largest multiple of 36 below 256.
	const maxRandomByte = 252

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			out[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// ContactKey returns "contact_{unixMillis}_{9 random base36 chars}".
func ContactKey(now time.Time) (string, error) {
	suffix, err := RandomSuffix(SuffixLength)
	if err != nil {
		return "", err
	}
	return "contact_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix, nil
}
