package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

// NewCode returns a decimal code of exactly digits digits, drawn uniformly
// from [10^(digits-1), 10^digits - 1]. Six digits yields [100000, 999999].
func NewCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	low := pow10(digits - 1)
	span := pow10(digits) - low

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(low+n.Int64(), 10), nil
}

// IsNumeric reports whether s is non-empty and made only of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
