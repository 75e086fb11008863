// Package credential checks login passwords against stored values.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// ModePlain stores and compares passwords verbatim.
	ModePlain = "plain"
	// ModeBcrypt stores bcrypt hashes.
	ModeBcrypt = "bcrypt"
)

// Verifier prepares passwords for storage and checks login attempts.
type Verifier interface {
	Hash(password string) (string, error)
	Match(stored, attempt string) bool
}

// Plain keeps passwords as entered and compares them by exact equality.
type Plain struct{}

func (Plain) Hash(password string) (string, error) { return password, nil }

func (Plain) Match(stored, attempt string) bool { return stored == attempt }

// Bcrypt hashes passwords with the given cost.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (Bcrypt) Match(stored, attempt string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(attempt)) == nil
}

// ErrUnknownMode is returned by New for an unsupported mode name.
var ErrUnknownMode = errors.New("unknown password mode")

// New returns the verifier for mode; empty means plain.
func New(mode string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModePlain:
		return Plain{}, nil
	case ModeBcrypt:
		return Bcrypt{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
