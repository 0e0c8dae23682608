package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the lowercase hex SHA-256 digest of the UTF-8 bytes of s.
func Sum(s string) string {
	return SumBytes([]byte(s))
}

func SumBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func Equal(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
