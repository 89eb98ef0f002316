// Package partycode generates and normalises the short, shareable party codes.
package partycode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	Length   = 7
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Bytes at or above this are discarded so every character is equally likely.
const unbiasedLimit = 256 - 256%len(alphabet)

// Generate returns a new upper-case alphanumeric code of Length characters.
func Generate() (string, error) {
	code := make([]byte, 0, Length)
	buf := make([]byte, Length+Length/2)
	for len(code) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		code = appendChars(code, buf)
	}
	return string(code), nil
}

// appendChars maps random bytes onto the alphabet until code holds Length characters.
func appendChars(code, random []byte) []byte {
	for _, b := range random {
		if len(code) == Length {
			break
		}
		if int(b) >= unbiasedLimit {
			continue
		}
		code = append(code, alphabet[int(b)%len(alphabet)])
	}
	return code
}

// Normalize makes codes case-insensitive: every lookup and room key goes through it.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a well-formed, normalised party code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
