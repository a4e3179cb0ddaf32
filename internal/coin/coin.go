// Package coin handles cryptocurrency symbol normalization and validation.
//
// Coins are keyed by their feed identifier (e.g. "bitcoin", "ethereum"),
// lowercased before any lookup so that "Bitcoin" and "BITCOIN" resolve to
// the same ledger entry.
package coin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches normalized feed identifiers: lowercase alphanumerics
// with interior hyphens. Example: bitcoin, ethereum, shiba-inu
var symbolRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var (
	ErrEmptySymbol   = errors.New("coin: empty symbol")
	ErrInvalidSymbol = errors.New("coin: invalid symbol")
)

// Normalize trims and lowercases a coin symbol and validates its charset.
// All ledger, cache, and controller lookups go through this first.
func Normalize(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		return "", ErrEmptySymbol
	}
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}
