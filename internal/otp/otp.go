// Package otp generates one-time numeric codes and opaque staging tokens.
package otp

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	MinDigits = 4
	MaxDigits = 10

	tokenBytes = 32
)

// Generator produces fixed-width decimal codes sampled uniformly over
// [0, 10^digits).
type Generator struct {
	digits int
	max    *big.Int
}

func NewGenerator(digits int) (*Generator, error) {
	if digits < MinDigits || digits > MaxDigits {
		return nil, fmt.Errorf("otp digits must be between %d and %d, got %d", MinDigits, MaxDigits, digits)
	}
	return &Generator{
		digits: digits,
		max:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil),
	}, nil
}

func (g *Generator) Digits() int {
	return g.digits
}

func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", g.digits, n.Int64()), nil
}

// NewToken returns a URL-safe token carrying 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
